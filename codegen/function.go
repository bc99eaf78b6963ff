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

// Package codegen generates C code from scheduled scalar functions.
//
// A scheduler orders the operations of an expression graph and assigns
// them storage slots. The result is a Function: a list of instructions
// reading and writing scalar slots and a real work vector. Generate
// turns a set of functions into a single C source file.
package codegen

import (
	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Function is a scheduled function.
type Function struct {
	// Name of the function in the generated code.
	Name string
	// In and Out are the sparsity patterns of the inputs and outputs.
	In, Out []*sparsity.Pattern
	// Scalars is the number of scalar slots.
	Scalars int
	// Work is the size of the real work vector.
	Work int
	// IWork is the size of the integer work vector.
	IWork int
	// Body is the list of instructions in execution order.
	Body []Instruction
}

// Validate checks that every instruction only refers to valid slots,
// arguments, and ranges of the work vectors.
func (f *Function) Validate() error {
	if !identifier.MatchString(f.Name) {
		return errors.Errorf("function name %q is not a valid identifier", f.Name)
	}
	var err error
	for i, sp := range f.In {
		if sp == nil {
			err = multierr.Append(err, errors.Errorf("input %d has no sparsity pattern", i))
		}
	}
	for i, sp := range f.Out {
		if sp == nil {
			err = multierr.Append(err, errors.Errorf("output %d has no sparsity pattern", i))
		}
	}
	if err != nil {
		return fmterr.PrefixWith("function %s: ", f.Name)(err)
	}
	for i, instr := range f.Body {
		err = multierr.Append(err, fmterr.PrefixWith("instruction %d: ", i)(instr.check(f)))
	}
	return fmterr.PrefixWith("function %s: ", f.Name)(err)
}

// NumNonzerosIn returns the total number of nonzeros of the inputs.
func (f *Function) NumNonzerosIn() int {
	return numNonzeros(f.In)
}

// NumNonzerosOut returns the total number of nonzeros of the outputs.
func (f *Function) NumNonzerosOut() int {
	return numNonzeros(f.Out)
}

func numNonzeros(sps []*sparsity.Pattern) int {
	n := 0
	for _, sp := range sps {
		n += sp.NNZ()
	}
	return n
}

func (f *Function) checkSlot(what string, slot int) error {
	if slot < 0 || slot >= f.Scalars {
		return errors.Errorf("%s slot %d out of range [0,%d)", what, slot, f.Scalars)
	}
	return nil
}

func (f *Function) checkWork(what string, offset, n int) error {
	if n < 0 {
		return errors.Errorf("%s has a negative size %d", what, n)
	}
	if offset < 0 || offset+n > f.Work {
		return errors.Errorf("%s range [%d,%d) out of the work vector of size %d", what, offset, offset+n, f.Work)
	}
	return nil
}

func (f *Function) checkIWork(what string, offset, n int) error {
	if offset < 0 || offset+n > f.IWork {
		return errors.Errorf("%s range [%d,%d) out of the integer work vector of size %d", what, offset, offset+n, f.IWork)
	}
	return nil
}

func checkPattern(what string, sp *sparsity.Pattern) error {
	if sp == nil {
		return errors.Errorf("%s has no sparsity pattern", what)
	}
	return nil
}
