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

package fmterr

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type (
	// ConsistencyError reports a dimension or shape mismatch between
	// dependent nodes. It is detected when the node is constructed.
	ConsistencyError struct {
		err error
	}

	// LookupError reports a reference to a sparsity pattern or a constant
	// that has not been registered in the current generation pass.
	LookupError struct {
		// What has been looked up ("sparsity pattern", "constant", ...).
		What string
		err  error
	}

	// ToolchainError reports an external compiler exiting with an error.
	ToolchainError struct {
		// Command run by the toolchain.
		Command []string
		// ExitStatus returned by the process, -1 if the process did not start.
		ExitStatus int
		err        error
	}
)

// Consistencyf returns a new consistency error.
func Consistencyf(format string, a ...any) error {
	return &ConsistencyError{err: errors.Errorf(format, a...)}
}

func (err *ConsistencyError) Error() string {
	return "inconsistent dimensions: " + err.err.Error()
}

// Unwrap returns the underlying error.
func (err *ConsistencyError) Unwrap() error {
	return err.err
}

// Format the error. The stack trace is included with %+v.
func (err *ConsistencyError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// Lookupf returns a new lookup error.
func Lookupf(what string, format string, a ...any) error {
	return &LookupError{What: what, err: errors.Errorf(format, a...)}
}

func (err *LookupError) Error() string {
	return err.What + " not found: " + err.err.Error()
}

// Unwrap returns the underlying error.
func (err *LookupError) Unwrap() error {
	return err.err
}

// Format the error. The stack trace is included with %+v.
func (err *LookupError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// Toolchain returns a new toolchain error given the command and its exit status.
func Toolchain(cmd []string, status int, cause error) error {
	if cause == nil {
		cause = errors.Errorf("exit status %d", status)
	}
	return &ToolchainError{
		Command:    cmd,
		ExitStatus: status,
		err:        errors.Wrapf(cause, "command %q", cmd),
	}
}

func (err *ToolchainError) Error() string {
	return fmt.Sprintf("compilation failed with exit status %d: %s", err.ExitStatus, err.err.Error())
}

// Unwrap returns the underlying error.
func (err *ToolchainError) Unwrap() error {
	return err.err
}

// Format the error. The stack trace is included with %+v.
func (err *ToolchainError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// IsConsistency returns true if err is or wraps a ConsistencyError.
func IsConsistency(err error) bool {
	var target *ConsistencyError
	return errors.As(err, &target)
}

// IsLookup returns true if err is or wraps a LookupError.
func IsLookup(err error) bool {
	var target *LookupError
	return errors.As(err, &target)
}

// IsToolchain returns true if err is or wraps a ToolchainError.
func IsToolchain(err error) bool {
	var target *ToolchainError
	return errors.As(err, &target)
}

// format writes an error. With %+v, the stack trace recorded when the
// error was created is appended.
func format(err error, s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, err.Error())
			var withSt interface {
				StackTrace() errors.StackTrace
			}
			if errors.As(err, &withSt) {
				fmt.Fprintf(s, "\nError generated at:%+v\n", withSt.StackTrace())
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}
