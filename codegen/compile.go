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

package codegen

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gx-org/sx/build/fmterr"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// LibraryFile returns the name of the dynamic library built for a module.
func LibraryFile(name string) string {
	return name + ".so"
}

func sharedFlag() string {
	if runtime.GOOS == "darwin" {
		return "-dynamiclib"
	}
	return "-shared"
}

func removeStale(fs afero.Fs, paths ...string) error {
	var err error
	for _, path := range paths {
		if rmErr := fs.RemoveAll(path); rmErr != nil {
			err = multierr.Append(err, errors.Wrapf(rmErr, "cannot remove %s", path))
		}
	}
	return err
}

// Compile generates the code of a set of functions and builds a dynamic library
// with a toolchain command such as "gcc -O2". Stale files of a previous
// compilation are removed first. The toolchain runs in the output directory,
// which must be on the filesystem of the operating system.
// Returns the path of the library.
func Compile(opts *Options, name, toolchain string, funcs ...*Function) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	out, err := Generate(opts, name, funcs...)
	if err != nil {
		return "", err
	}
	args, err := shellwords.Parse(toolchain)
	if err != nil {
		return "", errors.Wrapf(err, "cannot parse toolchain command %q", toolchain)
	}
	if len(args) == 0 {
		return "", errors.Errorf("empty toolchain command")
	}
	fs := opts.fs()
	lib := LibraryFile(name)
	if err := removeStale(fs,
		filepath.Join(opts.Dir, out.SourceFile()),
		filepath.Join(opts.Dir, out.HeaderFile()),
		filepath.Join(opts.Dir, lib),
	); err != nil {
		return "", err
	}
	if _, err := out.Write(fs, opts.Dir); err != nil {
		return "", err
	}
	args = append(args, sharedFlag(), out.SourceFile(), "-o", lib)
	log := opts.logger().Named(name)
	log.Debug("toolchain", "dir", opts.Dir, "command", strings.Join(args, " "))
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = opts.Dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmterr.Toolchain(args, -1, err)
		}
		var cause error
		if msg := strings.TrimSpace(output.String()); msg != "" {
			cause = errors.New(msg)
		}
		return "", fmterr.Toolchain(args, exitErr.ExitCode(), cause)
	}
	return filepath.Join(opts.Dir, lib), nil
}
