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

// Package op is the catalog of atomic scalar operations.
//
// Each operation is identified by a Code and described by a stateless Rule
// registered once in a table indexed by the code. Rules are shared by all
// the nodes of an expression graph using the operation.
package op

import (
	"fmt"
	"iter"
	"math"
)

// Code identifies an atomic operation.
type Code int

// Operation codes.
const (
	// Const is a numerical constant (leaf).
	Const Code = iota
	// Symbol is a free symbolic variable (leaf).
	Symbol
	Assign
	Add
	Sub
	Mul
	Div
	Neg
	Exp
	Log
	// Pow is x^y with a variable exponent, defined for x>=0.
	Pow
	// ConstPow is x^y where y is constant.
	ConstPow
	Sqrt
	Sq
	Twice
	Sin
	Cos
	Tan
	Asin
	Acos
	Atan
	Lt
	Le
	Floor
	Ceil
	Fmod
	Eq
	Ne
	Not
	And
	Or
	Erf
	Fabs
	Sign
	Copysign
	Fmin
	Fmax
	Inv
	Sinh
	Cosh
	Tanh
	Asinh
	Acosh
	Atanh
	Erfinv
	// PrintMe is the identity on x with the side effect of printing x tagged by y.
	PrintMe
	Atan2
	// IfElseZero is x ? y : 0.
	IfElseZero
	// Lift returns x. y is a hint for the initial value of x in root finding.
	Lift

	numCodes
)

// Helper is an auxiliary C routine required by an emission template.
type Helper int

// Helpers used by the emission templates.
const (
	NoHelper Helper = iota
	HelperSq
	HelperSign
	HelperErfinv
	HelperPrintMe
)

// Rule describes an atomic operation.
type Rule struct {
	// Name of the operation.
	Name string
	// Arity is the number of operands (0, 1, or 2).
	Arity int
	// Commutative is true if the operands can be swapped.
	Commutative bool
	// Eval computes the value of the operation. y is ignored by unary operations.
	Eval func(x, y float64) float64
	// Emit returns a C expression given the C expressions of the operands.
	Emit func(x, y string) string
	// Helper is the auxiliary routine required by Emit, if any.
	Helper Helper
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func unary(name string, f func(float64) float64) Rule {
	return Rule{
		Name:  name,
		Arity: 1,
		Eval:  func(x, _ float64) float64 { return f(x) },
		Emit:  func(x, _ string) string { return name + "(" + x + ")" },
	}
}

func call2(name string, f func(float64, float64) float64) Rule {
	return Rule{
		Name:  name,
		Arity: 2,
		Eval:  f,
		Emit:  func(x, y string) string { return name + "(" + x + "," + y + ")" },
	}
}

func infix(name, cop string, commutative bool, f func(float64, float64) float64) Rule {
	return Rule{
		Name:        name,
		Arity:       2,
		Commutative: commutative,
		Eval:        f,
		Emit:        func(x, y string) string { return "(" + x + cop + y + ")" },
	}
}

func withHelper(r Rule, h Helper) Rule {
	r.Helper = h
	return r
}

func fmin(x, y float64) float64 {
	switch {
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	}
	return math.Min(x, y)
}

func fmax(x, y float64) float64 {
	switch {
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	}
	return math.Max(x, y)
}

func sign(x float64) float64 {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return x
}

var rules = [numCodes]Rule{
	Const:  {Name: "const"},
	Symbol: {Name: "symbol"},
	Assign: {
		Name:  "assign",
		Arity: 1,
		Eval:  func(x, _ float64) float64 { return x },
		Emit:  func(x, _ string) string { return x },
	},
	Add: infix("add", "+", true, func(x, y float64) float64 { return x + y }),
	Sub: infix("sub", "-", false, func(x, y float64) float64 { return x - y }),
	Mul: infix("mul", "*", true, func(x, y float64) float64 { return x * y }),
	Div: infix("div", "/", false, func(x, y float64) float64 { return x / y }),
	Neg: {
		Name:  "neg",
		Arity: 1,
		Eval:  func(x, _ float64) float64 { return -x },
		Emit:  func(x, _ string) string { return "(-" + x + ")" },
	},
	Exp:      unary("exp", math.Exp),
	Log:      unary("log", math.Log),
	Pow:      call2("pow", math.Pow),
	ConstPow: {
		Name:  "constpow",
		Arity: 2,
		Eval:  math.Pow,
		Emit:  func(x, y string) string { return "pow(" + x + "," + y + ")" },
	},
	Sqrt:     unary("sqrt", math.Sqrt),
	Sq: withHelper(unary("sq", func(x float64) float64 {
		return x * x
	}), HelperSq),
	Twice: {
		Name:  "twice",
		Arity: 1,
		Eval:  func(x, _ float64) float64 { return 2 * x },
		Emit:  func(x, _ string) string { return "(2.*" + x + ")" },
	},
	Sin:   unary("sin", math.Sin),
	Cos:   unary("cos", math.Cos),
	Tan:   unary("tan", math.Tan),
	Asin:  unary("asin", math.Asin),
	Acos:  unary("acos", math.Acos),
	Atan:  unary("atan", math.Atan),
	Lt:    infix("lt", "<", false, func(x, y float64) float64 { return b2f(x < y) }),
	Le:    infix("le", "<=", false, func(x, y float64) float64 { return b2f(x <= y) }),
	Floor: unary("floor", math.Floor),
	Ceil:  unary("ceil", math.Ceil),
	Fmod:  call2("fmod", math.Mod),
	Eq:    infix("eq", "==", true, func(x, y float64) float64 { return b2f(x == y) }),
	Ne:    infix("ne", "!=", true, func(x, y float64) float64 { return b2f(x != y) }),
	Not: {
		Name:  "not",
		Arity: 1,
		Eval:  func(x, _ float64) float64 { return b2f(x == 0) },
		Emit:  func(x, _ string) string { return "(!" + x + ")" },
	},
	And:      infix("and", "&&", true, func(x, y float64) float64 { return b2f(x != 0 && y != 0) }),
	Or:       infix("or", "||", true, func(x, y float64) float64 { return b2f(x != 0 || y != 0) }),
	Erf:      unary("erf", math.Erf),
	Fabs:     unary("fabs", math.Abs),
	Sign:     withHelper(unary("sign", sign), HelperSign),
	Copysign: call2("copysign", math.Copysign),
	Fmin:     withCommutative(call2("fmin", fmin)),
	Fmax:     withCommutative(call2("fmax", fmax)),
	Inv: {
		Name:  "inv",
		Arity: 1,
		Eval:  func(x, _ float64) float64 { return 1 / x },
		Emit:  func(x, _ string) string { return "(1./" + x + ")" },
	},
	Sinh:    unary("sinh", math.Sinh),
	Cosh:    unary("cosh", math.Cosh),
	Tanh:    unary("tanh", math.Tanh),
	Asinh:   unary("asinh", math.Asinh),
	Acosh:   unary("acosh", math.Acosh),
	Atanh:   unary("atanh", math.Atanh),
	Erfinv:  withHelper(unary("erfinv", math.Erfinv), HelperErfinv),
	PrintMe: withHelper(call2("printme", func(x, _ float64) float64 { return x }), HelperPrintMe),
	Atan2:   call2("atan2", math.Atan2),
	IfElseZero: {
		Name:  "if_else_zero",
		Arity: 2,
		Eval: func(x, y float64) float64 {
			if x != 0 {
				return y
			}
			return 0
		},
		Emit: func(x, y string) string { return "(" + x + "?" + y + ":0)" },
	},
	Lift: {
		Name:  "lift",
		Arity: 2,
		Eval:  func(x, _ float64) float64 { return x },
		Emit:  func(x, _ string) string { return x },
	},
}

func withCommutative(r Rule) Rule {
	r.Commutative = true
	return r
}

var byName = func() map[string]Code {
	m := make(map[string]Code, numCodes)
	for c := range Codes() {
		m[rules[c].Name] = c
	}
	return m
}()

// Codes iterates over all the operation codes.
func Codes() iter.Seq[Code] {
	return func(yield func(Code) bool) {
		for c := Const; c < numCodes; c++ {
			if !yield(c) {
				return
			}
		}
	}
}

// Lookup returns the code of an operation given its name.
func Lookup(name string) (Code, bool) {
	c, ok := byName[name]
	return c, ok
}

// Valid returns true if c is a known operation code.
func (c Code) Valid() bool {
	return c >= Const && c < numCodes
}

// Rule returns the rule describing the operation.
func (c Code) Rule() *Rule {
	return &rules[c]
}

// Arity returns the number of operands of the operation.
func (c Code) Arity() int {
	return rules[c].Arity
}

// IsLeaf returns true for constants and symbols.
func (c Code) IsLeaf() bool {
	return c == Const || c == Symbol
}

// Eval computes the operation numerically.
// Domain errors are not checked: they produce NaN or Inf.
func (c Code) Eval(x, y float64) float64 {
	return rules[c].Eval(x, y)
}

// Emit returns the C expression of the operation given its operands.
func (c Code) Emit(x, y string) string {
	return rules[c].Emit(x, y)
}

func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return rules[c].Name
}

func (h Helper) String() string {
	switch h {
	case NoHelper:
		return "none"
	case HelperSq:
		return "sq"
	case HelperSign:
		return "sign"
	case HelperErfinv:
		return "erfinv"
	case HelperPrintMe:
		return "printme"
	}
	return fmt.Sprintf("Helper(%d)", int(h))
}
