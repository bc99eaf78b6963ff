// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"

	"github.com/gx-org/sx/codegen"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	*RootOptions
	out       string
	functions []string
	toolchain string
}

func (opts *generateOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (default: the dir option of the configuration)")
	cmd.Flags().StringSliceVarP(&opts.functions, "function", "f", nil, "functions of the program to generate (default: all)")
}

func (opts *generateOptions) prepare(program string) (*codegen.Options, []*codegen.Function, error) {
	cgOpts, err := opts.codegenOptions()
	if err != nil {
		return nil, nil, err
	}
	if opts.out != "" {
		cgOpts.Dir = opts.out
	}
	funcs, err := opts.loadProgram(program, opts.functions)
	if err != nil {
		return nil, nil, err
	}
	return cgOpts, funcs, nil
}

func newGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &generateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "generate <program.yaml>",
		Short: "Generate the C code of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cgOpts, funcs, err := opts.prepare(args[0])
			if err != nil {
				return err
			}
			out, err := codegen.Generate(cgOpts, opts.moduleName(args[0]), funcs...)
			if err != nil {
				return err
			}
			paths, err := out.Write(opts.fs(), cgOpts.Dir)
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func newCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &generateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "compile <program.yaml>",
		Short: "Generate the C code of a program and build a dynamic library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cgOpts, funcs, err := opts.prepare(args[0])
			if err != nil {
				return err
			}
			lib, err := codegen.Compile(cgOpts, opts.moduleName(args[0]), opts.toolchain, funcs...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lib)
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.toolchain, "toolchain", "gcc -O2 -fPIC", "command invoking the C compiler")
	return cmd
}
