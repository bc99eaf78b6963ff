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
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

type (
	// Function is a frozen expression graph mapping input matrices to output matrices.
	Function struct {
		name    string
		in, out []*Matrix
		// nodes in topological order: a node always appears after its dependencies.
		nodes  []*Node
		index  map[*Node]int
		logger hclog.Logger
	}

	// FunctionOption configures a function.
	FunctionOption func(*Function)
)

// WithLogger sets the logger receiving the values printed by printme operations
// during numerical evaluation.
func WithLogger(logger hclog.Logger) FunctionOption {
	return func(f *Function) {
		f.logger = logger
	}
}

// NewFunction freezes the graph computing out from in.
// Every nonzero of the inputs must be a distinct symbol and
// the outputs cannot depend on symbols other than the inputs.
func NewFunction(name string, in, out []*Matrix, opts ...FunctionOption) (*Function, error) {
	f, err := newFunction(name, in, out, false)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func newFunction(name string, in, out []*Matrix, allowFree bool) (*Function, error) {
	f := &Function{
		name:   name,
		in:     in,
		out:    out,
		index:  make(map[*Node]int),
		logger: hclog.NewNullLogger(),
	}
	for i, m := range in {
		for k, n := range m.nz {
			if !n.IsSymbolic() {
				return nil, errors.Errorf("function %s: nonzero %d of input %d is not a symbol: %s", name, k, i, n)
			}
			if _, dup := f.index[n]; dup {
				return nil, errors.Errorf("function %s: symbol %s appears more than once in the inputs", name, n)
			}
			f.push(n)
		}
	}
	for _, m := range out {
		for _, n := range m.nz {
			if err := f.visit(n, allowFree); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func (f *Function) push(n *Node) {
	f.index[n] = len(f.nodes)
	f.nodes = append(f.nodes, n)
}

// visit appends the dependencies of root in depth-first post-order.
func (f *Function) visit(root *Node, allowFree bool) error {
	type frame struct {
		n    *Node
		next int
	}
	if _, done := f.index[root]; done {
		return nil
	}
	stack := []frame{{n: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.n.deps) {
			dep := top.n.deps[top.next]
			top.next++
			if _, done := f.index[dep]; !done {
				stack = append(stack, frame{n: dep})
			}
			continue
		}
		stack = stack[:len(stack)-1]
		n := top.n
		if _, done := f.index[n]; done {
			continue
		}
		if n.IsSymbolic() && !allowFree {
			return fmterr.Consistencyf("function %s depends on the free symbol %s", f.name, n.name)
		}
		f.push(n)
	}
	return nil
}

// Name of the function.
func (f *Function) Name() string {
	return f.name
}

// NumIn returns the number of inputs.
func (f *Function) NumIn() int {
	return len(f.in)
}

// NumOut returns the number of outputs.
func (f *Function) NumOut() int {
	return len(f.out)
}

// In returns the ith input.
func (f *Function) In(i int) *Matrix {
	return f.in[i]
}

// Out returns the ith output.
func (f *Function) Out(i int) *Matrix {
	return f.out[i]
}

// Nodes returns all the nodes of the function in topological order.
func (f *Function) Nodes() []*Node {
	return append([]*Node{}, f.nodes...)
}

// Index returns the position of a node in the topological order.
func (f *Function) Index(n *Node) (int, bool) {
	i, ok := f.index[n]
	return i, ok
}

func (f *Function) checkArgs(what string, args [][]float64, mats []*Matrix) error {
	if len(args) != len(mats) {
		return fmterr.Consistencyf("function %s: got %d %ss but want %d", f.name, len(args), what, len(mats))
	}
	for i, arg := range args {
		if len(arg) != mats[i].NNZ() {
			return fmterr.Consistencyf("function %s: %s %d has %d values but want %d", f.name, what, i, len(arg), mats[i].NNZ())
		}
	}
	return nil
}

// Eval evaluates the function numerically.
// args[i] lists the values of the nonzeros of the ith input.
func (f *Function) Eval(args [][]float64) ([][]float64, error) {
	if err := f.checkArgs("input", args, f.in); err != nil {
		return nil, err
	}
	w := make([]float64, len(f.nodes))
	for i, m := range f.in {
		for k, n := range m.nz {
			w[f.index[n]] = args[i][k]
		}
	}
	for i, n := range f.nodes {
		switch n.code {
		case op.Symbol:
		case op.Const:
			w[i] = n.value
		default:
			x := w[f.index[n.deps[0]]]
			var y float64
			if len(n.deps) > 1 {
				y = w[f.index[n.deps[1]]]
			}
			w[i] = n.code.Eval(x, y)
			if n.code == op.PrintMe {
				f.logger.Info("printme", "function", f.name, "tag", y, "value", x)
			}
		}
	}
	res := make([][]float64, len(f.out))
	for i, m := range f.out {
		res[i] = make([]float64, m.NNZ())
		for k, n := range m.nz {
			res[i][k] = w[f.index[n]]
		}
	}
	return res, nil
}
