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
	"fmt"

	"github.com/gx-org/sx/build/op"
)

// DefaultEqualityDepth is the number of dependency levels followed
// by the simplifier when comparing two subexpressions.
const DefaultEqualityDepth = 1

type (
	// Builder creates nodes, simplifying constructions when a rewrite rule applies.
	// A builder only holds configuration and can be shared.
	Builder struct {
		eqDepth int
	}

	// Option configures a builder.
	Option func(*Builder)
)

var _ op.Algebra[*Node] = (*Builder)(nil)

// WithEqualityDepth sets the depth used by the simplifier to compare
// subexpressions. A depth of 0 compares nodes by identity.
func WithEqualityDepth(depth int) Option {
	return func(b *Builder) {
		b.eqDepth = depth
	}
}

// New returns a new node builder.
func New(opts ...Option) *Builder {
	b := &Builder{eqDepth: DefaultEqualityDepth}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EqualityDepth returns the depth used to compare subexpressions.
func (b *Builder) EqualityDepth() int {
	return b.eqDepth
}

// Const returns a constant node.
func (b *Builder) Const(v float64) *Node {
	return &Node{code: op.Const, value: v}
}

// Sym returns a new free symbol.
// Two symbols are always different even if they share the same name.
func (b *Builder) Sym(name string) *Node {
	return &Node{code: op.Symbol, name: name}
}

// Apply an operation to operands.
// The function panics if the number of operands does not match the arity of the operation.
func (b *Builder) Apply(c op.Code, args ...*Node) *Node {
	if !c.Valid() || c.IsLeaf() {
		panic(fmt.Sprintf("cannot apply operation %s", c))
	}
	if len(args) != c.Arity() {
		panic(fmt.Sprintf("operation %s has %d operands but %d given", c, c.Arity(), len(args)))
	}
	x := args[0]
	var y *Node
	if len(args) > 1 {
		y = args[1]
	}
	if n := b.rewrite(c, x, y); n != nil {
		return n
	}
	return &Node{code: c, deps: append([]*Node{}, args...)}
}

// Add returns x+y.
func (b *Builder) Add(x, y *Node) *Node { return b.Apply(op.Add, x, y) }

// Sub returns x-y.
func (b *Builder) Sub(x, y *Node) *Node { return b.Apply(op.Sub, x, y) }

// Mul returns x*y.
func (b *Builder) Mul(x, y *Node) *Node { return b.Apply(op.Mul, x, y) }

// Div returns x/y.
func (b *Builder) Div(x, y *Node) *Node { return b.Apply(op.Div, x, y) }

// Pow returns x^y.
func (b *Builder) Pow(x, y *Node) *Node { return b.Apply(op.Pow, x, y) }

// Fmin returns the minimum of x and y.
func (b *Builder) Fmin(x, y *Node) *Node { return b.Apply(op.Fmin, x, y) }

// Fmax returns the maximum of x and y.
func (b *Builder) Fmax(x, y *Node) *Node { return b.Apply(op.Fmax, x, y) }

// Atan2 returns the arc tangent of x/y.
func (b *Builder) Atan2(x, y *Node) *Node { return b.Apply(op.Atan2, x, y) }

// Lt returns 1 if x<y, 0 otherwise.
func (b *Builder) Lt(x, y *Node) *Node { return b.Apply(op.Lt, x, y) }

// Le returns 1 if x<=y, 0 otherwise.
func (b *Builder) Le(x, y *Node) *Node { return b.Apply(op.Le, x, y) }

// IfElseZero returns y if cond is not zero, 0 otherwise.
func (b *Builder) IfElseZero(cond, y *Node) *Node { return b.Apply(op.IfElseZero, cond, y) }

// PrintMe returns x and prints its value tagged by the constant tag when evaluated.
func (b *Builder) PrintMe(x *Node, tag float64) *Node {
	return b.Apply(op.PrintMe, x, b.Const(tag))
}

// Neg returns -x.
func (b *Builder) Neg(x *Node) *Node { return b.Apply(op.Neg, x) }

// Sq returns x*x.
func (b *Builder) Sq(x *Node) *Node { return b.Apply(op.Sq, x) }

// Sqrt returns the square root of x.
func (b *Builder) Sqrt(x *Node) *Node { return b.Apply(op.Sqrt, x) }

// Exp returns e^x.
func (b *Builder) Exp(x *Node) *Node { return b.Apply(op.Exp, x) }

// Log returns the natural logarithm of x.
func (b *Builder) Log(x *Node) *Node { return b.Apply(op.Log, x) }

// Sin returns the sine of x.
func (b *Builder) Sin(x *Node) *Node { return b.Apply(op.Sin, x) }

// Cos returns the cosine of x.
func (b *Builder) Cos(x *Node) *Node { return b.Apply(op.Cos, x) }

// Tan returns the tangent of x.
func (b *Builder) Tan(x *Node) *Node { return b.Apply(op.Tan, x) }

// Tanh returns the hyperbolic tangent of x.
func (b *Builder) Tanh(x *Node) *Node { return b.Apply(op.Tanh, x) }

// Fabs returns the absolute value of x.
func (b *Builder) Fabs(x *Node) *Node { return b.Apply(op.Fabs, x) }

// Simplify rebuilds expression graphs through the builder rewrite rules.
// Subexpressions shared in the input graphs stay shared in the output.
func (b *Builder) Simplify(nodes ...*Node) []*Node {
	done := make(map[*Node]*Node)
	var rebuild func(*Node) *Node
	rebuild = func(n *Node) *Node {
		if n.code.IsLeaf() {
			return n
		}
		if r, ok := done[n]; ok {
			return r
		}
		args := make([]*Node, len(n.deps))
		for i, dep := range n.deps {
			args[i] = rebuild(dep)
		}
		r := b.Apply(n.code, args...)
		done[n] = r
		return r
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = rebuild(n)
	}
	return out
}
