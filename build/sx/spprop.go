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
	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/pkg/errors"
)

// maskBits is the number of independent seeds propagated at once.
const maskBits = 64

func (f *Function) checkMasks(what string, masks [][]op.Mask, mats []*Matrix) error {
	args := make([][]float64, len(masks))
	for i, m := range masks {
		args[i] = make([]float64, len(m))
	}
	return f.checkArgs(what, args, mats)
}

func (f *Function) dep(n *Node, i int) int {
	return f.index[n.deps[i]]
}

// SpForward propagates dependency masks from the inputs to the outputs.
// Bit b of an output nonzero is set if the output may depend on an input
// nonzero with the bit b set.
func (f *Function) SpForward(in [][]op.Mask) ([][]op.Mask, error) {
	if err := f.checkMasks("input", in, f.in); err != nil {
		return nil, err
	}
	w := make([]op.Mask, len(f.nodes))
	for i, m := range f.in {
		for k, n := range m.nz {
			w[f.index[n]] = in[i][k]
		}
	}
	for i, n := range f.nodes {
		var x, y op.Mask
		switch len(n.deps) {
		case 0:
			continue
		case 2:
			y = w[f.dep(n, 1)]
			fallthrough
		case 1:
			x = w[f.dep(n, 0)]
		}
		w[i] = n.code.SpForward(x, y)
	}
	out := make([][]op.Mask, len(f.out))
	for i, m := range f.out {
		out[i] = make([]op.Mask, m.NNZ())
		for k, n := range m.nz {
			out[i][k] = w[f.index[n]]
		}
	}
	return out, nil
}

// SpReverse propagates dependency masks from the outputs back to the inputs.
// Bit b of an input nonzero is set if an output nonzero with the bit b set
// may depend on it.
func (f *Function) SpReverse(out [][]op.Mask) ([][]op.Mask, error) {
	if err := f.checkMasks("output", out, f.out); err != nil {
		return nil, err
	}
	w := make([]op.Mask, len(f.nodes))
	for i, m := range f.out {
		for k, n := range m.nz {
			w[f.index[n]] |= out[i][k]
		}
	}
	for i := len(f.nodes) - 1; i >= 0; i-- {
		n := f.nodes[i]
		if len(n.deps) == 0 || w[i] == 0 {
			continue
		}
		var x, y op.Mask
		n.code.SpReverse(w[i], &x, &y)
		w[f.dep(n, 0)] |= x
		if len(n.deps) > 1 {
			w[f.dep(n, 1)] |= y
		}
		w[i] = 0
	}
	in := make([][]op.Mask, len(f.in))
	for i, m := range f.in {
		in[i] = make([]op.Mask, m.NNZ())
		for k, n := range m.nz {
			in[i][k] = w[f.index[n]]
		}
	}
	return in, nil
}

// JacobianSparsity returns the structure of the Jacobian of output iout
// with respect to input iin. The Jacobian has one row per nonzero of the output
// and one column per nonzero of the input.
func (f *Function) JacobianSparsity(iin, iout int) (*sparsity.Pattern, error) {
	if iin < 0 || iin >= len(f.in) {
		return nil, errors.Errorf("function %s: input %d out of range [0,%d)", f.name, iin, len(f.in))
	}
	if iout < 0 || iout >= len(f.out) {
		return nil, errors.Errorf("function %s: output %d out of range [0,%d)", f.name, iout, len(f.out))
	}
	nin, nout := f.in[iin].NNZ(), f.out[iout].NNZ()
	seeds := make([][]op.Mask, len(f.in))
	for i, m := range f.in {
		seeds[i] = make([]op.Mask, m.NNZ())
	}
	var cells []sparsity.Cell
	for offset := 0; offset < nin; offset += maskBits {
		clear(seeds[iin])
		for k := offset; k < nin && k < offset+maskBits; k++ {
			seeds[iin][k] = 1 << (k - offset)
		}
		res, err := f.SpForward(seeds)
		if err != nil {
			return nil, err
		}
		for r, mask := range res[iout] {
			for bit := 0; mask != 0; bit++ {
				if mask&1 != 0 {
					cells = append(cells, sparsity.Cell{Row: r, Col: offset + bit})
				}
				mask >>= 1
			}
		}
	}
	return sparsity.Triplet(nout, nin, cells)
}
