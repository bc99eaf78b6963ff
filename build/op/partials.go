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

package op

import "math"

// Algebra builds values of type E. The same partial derivative rules are
// used to compute numerical values (float64) and to build expression
// graphs.
type Algebra[E any] interface {
	// Const returns a constant value.
	Const(v float64) E
	// Apply an operation to its operands.
	Apply(c Code, args ...E) E
}

// Float is the algebra of float64 numbers.
type Float struct{}

var _ Algebra[float64] = Float{}

// Const returns v.
func (Float) Const(v float64) float64 {
	return v
}

// Apply evaluates an operation numerically.
func (Float) Apply(c Code, args ...float64) float64 {
	var x, y float64
	if len(args) > 0 {
		x = args[0]
	}
	if len(args) > 1 {
		y = args[1]
	}
	return c.Eval(x, y)
}

// Partials returns the partial derivatives of an operation with respect to
// its operands x and y, given the result f of the operation. dy is zero for
// unary operations.
//
// The partial of Pow with respect to its exponent is log(x)*f: it is only
// defined for x>0, as the operation itself.
func Partials[E any](alg Algebra[E], c Code, x, y, f E) (dx, dy E) {
	k := alg.Const
	ap := alg.Apply
	zero := k(0)
	switch c {
	case Assign, Lift, PrintMe:
		return k(1), zero
	case Add:
		return k(1), k(1)
	case Sub:
		return k(1), k(-1)
	case Mul:
		return y, x
	case Div:
		return ap(Inv, y), ap(Div, ap(Neg, f), y)
	case Neg:
		return k(-1), zero
	case Exp:
		return f, zero
	case Log:
		return ap(Inv, x), zero
	case Pow:
		return ap(Mul, y, ap(Pow, x, ap(Sub, y, k(1)))), ap(Mul, ap(Log, x), f)
	case ConstPow:
		return ap(Mul, y, ap(ConstPow, x, ap(Sub, y, k(1)))), zero
	case Sqrt:
		return ap(Inv, ap(Twice, f)), zero
	case Sq:
		return ap(Twice, x), zero
	case Twice:
		return k(2), zero
	case Sin:
		return ap(Cos, x), zero
	case Cos:
		return ap(Neg, ap(Sin, x)), zero
	case Tan:
		return ap(Inv, ap(Sq, ap(Cos, x))), zero
	case Asin:
		return ap(Inv, ap(Sqrt, ap(Sub, k(1), ap(Sq, x)))), zero
	case Acos:
		return ap(Neg, ap(Inv, ap(Sqrt, ap(Sub, k(1), ap(Sq, x))))), zero
	case Atan:
		return ap(Inv, ap(Add, k(1), ap(Sq, x))), zero
	case Fmod:
		return k(1), ap(Div, ap(Sub, f, x), y)
	case Erf:
		return ap(Mul, k(2/math.Sqrt(math.Pi)), ap(Exp, ap(Neg, ap(Sq, x)))), zero
	case Fabs:
		return ap(Sign, x), zero
	case Copysign:
		return ap(Copysign, k(1), y), zero
	case Fmin:
		dx = ap(Le, x, y)
		return dx, ap(Not, dx)
	case Fmax:
		dx = ap(Le, y, x)
		return dx, ap(Not, dx)
	case Inv:
		return ap(Neg, ap(Sq, f)), zero
	case Sinh:
		return ap(Cosh, x), zero
	case Cosh:
		return ap(Sinh, x), zero
	case Tanh:
		return ap(Sub, k(1), ap(Sq, f)), zero
	case Asinh:
		return ap(Inv, ap(Sqrt, ap(Add, k(1), ap(Sq, x)))), zero
	case Acosh:
		return ap(Div, ap(Inv, ap(Sqrt, ap(Sub, x, k(1)))), ap(Sqrt, ap(Add, x, k(1)))), zero
	case Atanh:
		return ap(Inv, ap(Sub, k(1), ap(Sq, x))), zero
	case Erfinv:
		return ap(Mul, k(math.Sqrt(math.Pi)/2), ap(Exp, ap(Sq, f))), zero
	case Atan2:
		t := ap(Add, ap(Sq, x), ap(Sq, y))
		return ap(Div, y, t), ap(Neg, ap(Div, x, t))
	case IfElseZero:
		return zero, ap(IfElseZero, x, k(1))
	}
	// Constants, symbols, comparisons, rounding, and logical operations.
	return zero, zero
}
