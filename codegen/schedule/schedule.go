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

// Package schedule orders the operations of a symbolic function and
// assigns them scalar slots for the code generator.
package schedule

import (
	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sx"
	"github.com/gx-org/sx/codegen"
	"github.com/pkg/errors"
)

type position struct {
	arg, nz int
}

// slots allocates scalar slots, reusing the most recently freed one first.
type slots struct {
	free []int
	n    int
}

func (s *slots) alloc() int {
	if len(s.free) == 0 {
		s.n++
		return s.n - 1
	}
	i := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	return i
}

func (s *slots) release(i int) {
	s.free = append(s.free, i)
}

// Schedule returns the instructions evaluating f.
// Nodes are evaluated in topological order and the slot of a node is
// released after its last use, so that the number of slots is usually
// much lower than the number of nodes.
func Schedule(f *sx.Function) (*codegen.Function, error) {
	nodes := f.Nodes()
	inputs := make(map[*sx.Node]position)
	cf := &codegen.Function{Name: f.Name()}
	for i := range f.NumIn() {
		in := f.In(i)
		cf.In = append(cf.In, in.Sparsity())
		for k, n := range in.Nonzeros() {
			inputs[n] = position{arg: i, nz: k}
		}
	}
	// Outputs are written at the end: they live until then.
	end := len(nodes)
	lastUse := make([]int, len(nodes))
	for i := range lastUse {
		lastUse[i] = -1
	}
	for i, n := range nodes {
		for d := range n.NumDeps() {
			j, _ := f.Index(n.Dep(d))
			lastUse[j] = i
		}
	}
	for i := range f.NumOut() {
		out := f.Out(i)
		cf.Out = append(cf.Out, out.Sparsity())
		for _, n := range out.Nonzeros() {
			j, _ := f.Index(n)
			lastUse[j] = end
		}
	}

	var s slots
	slot := make([]int, len(nodes))
	for i, n := range nodes {
		if lastUse[i] < 0 {
			continue
		}
		switch n.Code() {
		case op.Symbol:
			pos, ok := inputs[n]
			if !ok {
				return nil, errors.Errorf("function %s: symbol %s is not an input", f.Name(), n.Name())
			}
			slot[i] = s.alloc()
			cf.Body = append(cf.Body, &codegen.Input{Slot: slot[i], Arg: pos.arg, NZ: pos.nz})
		case op.Const:
			slot[i] = s.alloc()
			cf.Body = append(cf.Body, &codegen.Const{Slot: slot[i], Value: n.Value()})
		default:
			instr := &codegen.Apply{Op: n.Code()}
			j, _ := f.Index(n.Dep(0))
			instr.X = slot[j]
			if n.NumDeps() > 1 {
				k, _ := f.Index(n.Dep(1))
				instr.Y = slot[k]
			}
			for d := range n.NumDeps() {
				j, _ := f.Index(n.Dep(d))
				// Each dependency is released once, even if used twice.
				if lastUse[j] == i && (d == 0 || n.Dep(0) != n.Dep(1)) {
					s.release(slot[j])
				}
			}
			slot[i] = s.alloc()
			instr.Slot = slot[i]
			cf.Body = append(cf.Body, instr)
		}
	}
	for i := range f.NumOut() {
		for k, n := range f.Out(i).Nonzeros() {
			j, _ := f.Index(n)
			cf.Body = append(cf.Body, &codegen.Output{Res: i, NZ: k, Slot: slot[j]})
		}
	}
	cf.Scalars = s.n
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}
