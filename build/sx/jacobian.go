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

package sx

import (
	"github.com/gx-org/sx/build/sparsity"
	"github.com/pkg/errors"
)

// Jacobian returns the Jacobian of out with respect to in.
// The Jacobian has one row per nonzero of out and one column per nonzero of in.
// Every nonzero of in must be a symbol. out may depend on other symbols.
//
// Forward mode is used when in has fewer nonzeros than out, reverse mode otherwise.
func (b *Builder) Jacobian(out, in *Matrix) (*Matrix, error) {
	f, err := newFunction("jacobian", []*Matrix{in}, []*Matrix{out}, true)
	if err != nil {
		return nil, err
	}
	sp, err := f.JacobianSparsity(0, 0)
	if err != nil {
		return nil, err
	}
	jac := &Matrix{sp: sp, nz: make([]*Node, sp.NNZ())}
	nin, nout := in.NNZ(), out.NNZ()
	if nin <= nout {
		seeds := make([][]*Matrix, nin)
		for c := range nin {
			seeds[c] = []*Matrix{b.unit(in.sp, c)}
		}
		sens, err := b.Forward(f, seeds)
		if err != nil {
			return nil, err
		}
		for k, cell := range sp.All() {
			jac.nz[k] = sens[cell.Col][0].nz[cell.Row]
		}
		return jac, nil
	}
	seeds := make([][]*Matrix, nout)
	for r := range nout {
		seeds[r] = []*Matrix{b.unit(out.sp, r)}
	}
	sens, err := b.Reverse(f, seeds)
	if err != nil {
		return nil, err
	}
	for k, cell := range sp.All() {
		jac.nz[k] = sens[cell.Row][0].nz[cell.Col]
	}
	return jac, nil
}

// unit returns a matrix with the constant 1 at nonzero k and 0 elsewhere.
func (b *Builder) unit(sp *sparsity.Pattern, k int) *Matrix {
	m := b.Zeros(sp)
	m.nz[k] = b.Const(1)
	return m
}

// Gradient returns the derivative of y with respect to the symbol x.
func (b *Builder) Gradient(y, x *Node) (*Node, error) {
	if !x.IsSymbolic() {
		return nil, errors.Errorf("cannot differentiate with respect to %s: not a symbol", x)
	}
	jac, err := b.Jacobian(Scalar(y), Scalar(x))
	if err != nil {
		return nil, err
	}
	if jac.NNZ() == 0 {
		return b.Const(0), nil
	}
	return jac.nz[0], nil
}
