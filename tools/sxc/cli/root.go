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

// Package cli implements the sxc commands.
package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gx-org/sx/codegen"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// RootOptions holds the flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Config  string
	Name    string

	// Fs is the filesystem used to read programs and write generated files.
	Fs     afero.Fs
	logger hclog.Logger
}

// NewRootCommand returns the root command of sxc.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Fs: afero.NewOsFs()})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sxc",
		Short:         "Generate C code from scheduled scalar programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := hclog.Info
			if opts.Verbose {
				level = hclog.Debug
			}
			opts.logger = hclog.New(&hclog.LoggerOptions{
				Name:   "sxc",
				Level:  level,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug records")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML file with the code generator options")
	cmd.PersistentFlags().StringVar(&opts.Name, "name", "", "module name (default: the program file name)")

	cmd.AddCommand(newOpsCommand(opts))
	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newCompileCommand(opts))
	return cmd
}

func (opts *RootOptions) fs() afero.Fs {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return opts.Fs
}

// codegenOptions loads the code generator options from the configuration file, if any.
func (opts *RootOptions) codegenOptions() (*codegen.Options, error) {
	cgOpts := codegen.DefaultOptions()
	if opts.Config != "" {
		f, err := opts.fs().Open(opts.Config)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open configuration")
		}
		defer f.Close()
		if cgOpts, err = codegen.LoadOptions(f); err != nil {
			return nil, errors.Wrapf(err, "cannot load configuration %s", opts.Config)
		}
	}
	cgOpts.Fs = opts.fs()
	cgOpts.Logger = opts.logger
	return cgOpts, nil
}

// moduleName returns the name of the module generated from a program file.
func (opts *RootOptions) moduleName(program string) string {
	if opts.Name != "" {
		return opts.Name
	}
	base := filepath.Base(program)
	return strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), "-", "_")
}

// loadProgram reads a program and selects some of its functions.
// All functions are selected if names is empty.
func (opts *RootOptions) loadProgram(path string, names []string) ([]*codegen.Function, error) {
	f, err := opts.fs().Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("program %s does not exist", path)
		}
		return nil, errors.Wrapf(err, "cannot open program")
	}
	defer f.Close()
	prog, err := codegen.LoadProgram(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load program %s", path)
	}
	if len(names) == 0 {
		return prog.Functions, nil
	}
	funcs := make([]*codegen.Function, len(names))
	for i, name := range names {
		if funcs[i], err = prog.Function(name); err != nil {
			return nil, err
		}
	}
	return funcs, nil
}
