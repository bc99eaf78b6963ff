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

import "github.com/gx-org/sx/build/op"

// rule returns a simplified node for an operation applied to x and y,
// or nil if the rule does not apply.
type rule func(b *Builder, x, y *Node) *Node

// rules is filled in init because the rules build nodes through rewrite.
var rules map[op.Code]rule

func init() {
	rules = map[op.Code]rule{
		op.Add:      simplifyAdd,
		op.Sub:      simplifySub,
		op.Mul:      simplifyMul,
		op.Div:      simplifyDiv,
		op.Neg:      simplifyNeg,
		op.Pow:      simplifyPow,
		op.ConstPow: simplifyConstPow,
		op.Fmin:     simplifyIdempotent,
		op.Fmax:     simplifyIdempotent,
	}
}

func (b *Builder) rewrite(c op.Code, x, y *Node) *Node {
	if c != op.PrintMe && x.IsConst() && (y == nil || y.IsConst()) {
		var yv float64
		if y != nil {
			yv = y.value
		}
		return b.Const(c.Eval(x.value, yv))
	}
	r := rules[c]
	if r == nil {
		return nil
	}
	return r(b, x, y)
}

func (b *Builder) equal(x, y *Node) bool {
	return Equal(x, y, b.eqDepth)
}

// half returns a if n is 0.5*a, a*0.5, or a/2.
func half(n *Node) *Node {
	switch n.code {
	case op.Mul:
		if n.deps[0].IsValue(0.5) {
			return n.deps[1]
		}
		if n.deps[1].IsValue(0.5) {
			return n.deps[0]
		}
	case op.Div:
		if n.deps[1].IsValue(2) {
			return n.deps[0]
		}
	}
	return nil
}

// isSqOf returns the argument of f if n is sq(f(theta)).
func isSqOf(n *Node, f op.Code) *Node {
	if n.code != op.Sq || n.deps[0].code != f {
		return nil
	}
	return n.deps[0].deps[0]
}

func simplifyAdd(b *Builder, x, y *Node) *Node {
	switch {
	case x.IsZero():
		return y
	case y.IsZero():
		return x
	case y.code == op.Neg:
		return b.Sub(x, y.deps[0])
	case x.code == op.Neg:
		return b.Sub(y, x.deps[0])
	case x.code == op.Sub && b.equal(x.deps[1], y):
		return x.deps[0]
	case y.code == op.Sub && b.equal(y.deps[1], x):
		return y.deps[0]
	}
	if hx, hy := half(x), half(y); hx != nil && hy != nil && b.equal(hx, hy) {
		return hx
	}
	if sin, cos := isSqOf(x, op.Sin), isSqOf(y, op.Cos); sin != nil && cos != nil && b.equal(sin, cos) {
		return b.Const(1)
	}
	if cos, sin := isSqOf(x, op.Cos), isSqOf(y, op.Sin); sin != nil && cos != nil && b.equal(sin, cos) {
		return b.Const(1)
	}
	return nil
}

func simplifySub(b *Builder, x, y *Node) *Node {
	switch {
	case y.IsZero():
		return x
	case x.IsZero():
		return b.Neg(y)
	case b.equal(x, y):
		return b.Const(0)
	case y.code == op.Neg:
		return b.Add(x, y.deps[0])
	}
	return nil
}

func simplifyMul(b *Builder, x, y *Node) *Node {
	switch {
	case x.IsZero() || y.IsZero():
		return b.Const(0)
	case x.IsValue(1):
		return y
	case y.IsValue(1):
		return x
	case x.IsValue(-1):
		return b.Neg(y)
	case y.IsValue(-1):
		return b.Neg(x)
	case b.equal(x, y):
		return b.Sq(x)
	}
	return nil
}

func simplifyDiv(b *Builder, x, y *Node) *Node {
	if y.IsValue(1) {
		return x
	}
	return nil
}

func simplifyNeg(b *Builder, x, _ *Node) *Node {
	if x.code == op.Neg {
		return x.deps[0]
	}
	return nil
}

func simplifyPow(b *Builder, x, y *Node) *Node {
	if y.IsConst() {
		return b.Apply(op.ConstPow, x, y)
	}
	return nil
}

func simplifyConstPow(b *Builder, x, y *Node) *Node {
	if y.IsValue(1) {
		return x
	}
	return nil
}

func simplifyIdempotent(b *Builder, x, y *Node) *Node {
	if b.equal(x, y) {
		return x
	}
	return nil
}
