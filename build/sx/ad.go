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
	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/op"
)

func (f *Function) checkSeeds(what string, seeds [][]*Matrix, mats []*Matrix) error {
	for d, seed := range seeds {
		if len(seed) != len(mats) {
			return fmterr.Consistencyf("function %s: direction %d has %d %s seeds but want %d", f.name, d, len(seed), what, len(mats))
		}
		for i, m := range seed {
			if !m.sp.Equal(mats[i].sp) {
				return fmterr.Consistencyf("function %s: direction %d: %s seed %d has pattern %s but want %s", f.name, d, what, i, m.sp, mats[i].sp)
			}
		}
	}
	return nil
}

func (b *Builder) partials(n *Node) (dx, dy *Node) {
	x := n.deps[0]
	var y *Node
	if len(n.deps) > 1 {
		y = n.deps[1]
	}
	return op.Partials[*Node](b, n.code, x, y, n)
}

// Forward computes forward directional derivatives.
// fseed[d][i] is the seed of direction d for the input i. The result
// fsens[d][j] is the sensitivity of the output j in the direction d.
// All the directions are computed in a single traversal of the graph.
func (b *Builder) Forward(f *Function, fseed [][]*Matrix) ([][]*Matrix, error) {
	if err := f.checkSeeds("input", fseed, f.in); err != nil {
		return nil, err
	}
	ndir := len(fseed)
	zero := b.Const(0)
	// tangents[i][d] is the sensitivity of node i in direction d.
	tangents := make([][]*Node, len(f.nodes))
	for i := range tangents {
		tangents[i] = make([]*Node, ndir)
	}
	for i, m := range f.in {
		for k, n := range m.nz {
			for d := range ndir {
				tangents[f.index[n]][d] = fseed[d][i].nz[k]
			}
		}
	}
	for i, n := range f.nodes {
		t := tangents[i]
		if len(n.deps) == 0 {
			for d := range ndir {
				if t[d] == nil {
					t[d] = zero
				}
			}
			continue
		}
		dx, dy := b.partials(n)
		tx := tangents[f.dep(n, 0)]
		var ty []*Node
		if len(n.deps) > 1 {
			ty = tangents[f.dep(n, 1)]
		}
		for d := range ndir {
			t[d] = b.Mul(dx, tx[d])
			if ty != nil {
				t[d] = b.Add(t[d], b.Mul(dy, ty[d]))
			}
		}
	}
	fsens := make([][]*Matrix, ndir)
	for d := range ndir {
		fsens[d] = make([]*Matrix, len(f.out))
		for j, m := range f.out {
			sens := &Matrix{sp: m.sp, nz: make([]*Node, len(m.nz))}
			for k, n := range m.nz {
				sens.nz[k] = tangents[f.index[n]][d]
			}
			fsens[d][j] = sens
		}
	}
	return fsens, nil
}

// Reverse computes adjoint sensitivities.
// aseed[d][j] is the seed of direction d for the output j. The result
// asens[d][i] is the adjoint sensitivity of the input i in the direction d.
//
// Nodes are visited in reverse topological order such that the adjoint
// of a node has accumulated the contributions of all its consumers
// before being propagated to its operands.
func (b *Builder) Reverse(f *Function, aseed [][]*Matrix) ([][]*Matrix, error) {
	if err := f.checkSeeds("output", aseed, f.out); err != nil {
		return nil, err
	}
	ndir := len(aseed)
	// adjoints[i][d] is the adjoint of node i in direction d, nil for zero.
	adjoints := make([][]*Node, len(f.nodes))
	for i := range adjoints {
		adjoints[i] = make([]*Node, ndir)
	}
	accumulate := func(i, d int, v *Node) {
		if v.IsZero() {
			return
		}
		if adjoints[i][d] == nil {
			adjoints[i][d] = v
			return
		}
		adjoints[i][d] = b.Add(adjoints[i][d], v)
	}
	for j, m := range f.out {
		for k, n := range m.nz {
			for d := range ndir {
				accumulate(f.index[n], d, aseed[d][j].nz[k])
			}
		}
	}
	for i := len(f.nodes) - 1; i >= 0; i-- {
		n := f.nodes[i]
		if len(n.deps) == 0 || !anyNonNil(adjoints[i]) {
			continue
		}
		dx, dy := b.partials(n)
		for d, a := range adjoints[i] {
			if a == nil {
				continue
			}
			accumulate(f.dep(n, 0), d, b.Mul(dx, a))
			if len(n.deps) > 1 {
				accumulate(f.dep(n, 1), d, b.Mul(dy, a))
			}
		}
	}
	zero := b.Const(0)
	asens := make([][]*Matrix, ndir)
	for d := range ndir {
		asens[d] = make([]*Matrix, len(f.in))
		for i, m := range f.in {
			sens := &Matrix{sp: m.sp, nz: make([]*Node, len(m.nz))}
			for k, n := range m.nz {
				sens.nz[k] = adjoints[f.index[n]][d]
				if sens.nz[k] == nil {
					sens.nz[k] = zero
				}
			}
			asens[d][i] = sens
		}
	}
	return asens, nil
}

func anyNonNil(nodes []*Node) bool {
	for _, n := range nodes {
		if n != nil {
			return true
		}
	}
	return false
}
