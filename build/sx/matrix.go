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
	"strings"

	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
)

// Matrix is a sparse matrix of expressions.
// It stores one node per structural nonzero of its sparsity pattern.
type Matrix struct {
	sp *sparsity.Pattern
	nz []*Node
}

// NewMatrix returns a matrix given its sparsity pattern and its nonzeros.
func NewMatrix(sp *sparsity.Pattern, nz []*Node) (*Matrix, error) {
	if sp.NNZ() != len(nz) {
		return nil, fmterr.Consistencyf("pattern %s has %d nonzeros but %d nodes given", sp, sp.NNZ(), len(nz))
	}
	return &Matrix{sp: sp, nz: append([]*Node{}, nz...)}, nil
}

// Scalar returns a 1x1 matrix.
func Scalar(n *Node) *Matrix {
	return &Matrix{sp: sparsity.Scalar(), nz: []*Node{n}}
}

// Column returns a dense column vector.
func Column(nodes ...*Node) *Matrix {
	return &Matrix{sp: sparsity.Dense(len(nodes), 1), nz: append([]*Node{}, nodes...)}
}

// SymMatrix returns a matrix of new symbols.
// The symbols are named name_k where k is the index of the nonzero.
func (b *Builder) SymMatrix(name string, sp *sparsity.Pattern) *Matrix {
	m := &Matrix{sp: sp, nz: make([]*Node, sp.NNZ())}
	if sp.IsScalar(true) {
		m.nz[0] = b.Sym(name)
		return m
	}
	for k := range m.nz {
		m.nz[k] = b.Sym(fmt.Sprintf("%s_%d", name, k))
	}
	return m
}

// ConstMatrix returns a matrix of constants given its nonzero values.
func (b *Builder) ConstMatrix(sp *sparsity.Pattern, values []float64) (*Matrix, error) {
	if sp.NNZ() != len(values) {
		return nil, fmterr.Consistencyf("pattern %s has %d nonzeros but %d values given", sp, sp.NNZ(), len(values))
	}
	m := &Matrix{sp: sp, nz: make([]*Node, len(values))}
	for k, v := range values {
		m.nz[k] = b.Const(v)
	}
	return m, nil
}

// Zeros returns a matrix filled with the constant 0 at every structural nonzero.
func (b *Builder) Zeros(sp *sparsity.Pattern) *Matrix {
	m := &Matrix{sp: sp, nz: make([]*Node, sp.NNZ())}
	zero := b.Const(0)
	for k := range m.nz {
		m.nz[k] = zero
	}
	return m
}

// Sparsity returns the sparsity pattern of the matrix.
func (m *Matrix) Sparsity() *sparsity.Pattern {
	return m.sp
}

// NNZ returns the number of structural nonzeros.
func (m *Matrix) NNZ() int {
	return len(m.nz)
}

// At returns the kth nonzero.
func (m *Matrix) At(k int) *Node {
	return m.nz[k]
}

// Nonzeros returns a copy of the nonzeros.
func (m *Matrix) Nonzeros() []*Node {
	return append([]*Node{}, m.nz...)
}

// Get returns the expression at row r and column c.
// A structural zero is returned as nil.
func (m *Matrix) Get(r, c int) *Node {
	k, ok := m.sp.Find(r, c)
	if !ok {
		return nil
	}
	return m.nz[k]
}

// String representation of the matrix.
func (m *Matrix) String() string {
	if m.sp.IsScalar(true) {
		return m.nz[0].String()
	}
	var s strings.Builder
	fmt.Fprintf(&s, "%s[", m.sp)
	for k, n := range m.nz {
		if k > 0 {
			s.WriteString(", ")
		}
		s.WriteString(n.String())
	}
	s.WriteString("]")
	return s.String()
}

// Densify returns a dense matrix with structural zeros replaced by the constant 0.
func (b *Builder) Densify(m *Matrix) *Matrix {
	if m.sp.IsDense() {
		return m
	}
	d := b.Zeros(sparsity.Dense(m.sp.Rows(), m.sp.Cols()))
	for k, cell := range m.sp.All() {
		d.nz[cell.Col*m.sp.Rows()+cell.Row] = m.nz[k]
	}
	return d
}

// preservesZero returns true if f(0, 0) is 0 and structural zeros stay zero.
func preservesZero(c op.Code) bool {
	return c.Eval(0, 0) == 0
}

// Map applies a unary operation to every nonzero of a matrix.
func (b *Builder) Map(c op.Code, x *Matrix) (*Matrix, error) {
	if c.Arity() != 1 {
		return nil, fmterr.Consistencyf("operation %s is not unary", c)
	}
	if !preservesZero(c) {
		x = b.Densify(x)
	}
	m := &Matrix{sp: x.sp, nz: make([]*Node, len(x.nz))}
	for k, n := range x.nz {
		m.nz[k] = b.Apply(c, n)
	}
	return m, nil
}

// Elementwise applies a binary operation to every pair of nonzeros of two matrices.
// Both matrices must share the same sparsity pattern unless one of them is a scalar.
// A scalar is broadcast to the structural zeros of the other operand unless
// the operation applied to the scalar and 0 simplifies to 0.
func (b *Builder) Elementwise(c op.Code, x, y *Matrix) (*Matrix, error) {
	if c.Arity() != 2 {
		return nil, fmterr.Consistencyf("operation %s is not binary", c)
	}
	xScalar, yScalar := x.sp.IsScalar(true), y.sp.IsScalar(true)
	switch {
	case xScalar && !yScalar:
		if !b.Apply(c, x.nz[0], b.Const(0)).IsZero() {
			y = b.Densify(y)
		}
		return b.broadcast(y.sp, y.nz, func(n *Node) *Node { return b.Apply(c, x.nz[0], n) }), nil
	case yScalar && !xScalar:
		if !b.Apply(c, b.Const(0), y.nz[0]).IsZero() {
			x = b.Densify(x)
		}
		return b.broadcast(x.sp, x.nz, func(n *Node) *Node { return b.Apply(c, n, y.nz[0]) }), nil
	}
	if x.sp.Rows() != y.sp.Rows() || x.sp.Cols() != y.sp.Cols() {
		return nil, fmterr.Consistencyf("cannot apply %s to matrices of pattern %s and %s", c, x.sp, y.sp)
	}
	if !x.sp.Equal(y.sp) || !preservesZero(c) {
		x, y = b.Densify(x), b.Densify(y)
	}
	m := &Matrix{sp: x.sp, nz: make([]*Node, len(x.nz))}
	for k := range x.nz {
		m.nz[k] = b.Apply(c, x.nz[k], y.nz[k])
	}
	return m, nil
}

func (b *Builder) broadcast(sp *sparsity.Pattern, nz []*Node, f func(*Node) *Node) *Matrix {
	m := &Matrix{sp: sp, nz: make([]*Node, len(nz))}
	for k, n := range nz {
		m.nz[k] = f(n)
	}
	return m
}

// Dot returns the inner product of two matrices of the same shape.
func (b *Builder) Dot(x, y *Matrix) (*Node, error) {
	prod, err := b.Elementwise(op.Mul, x, y)
	if err != nil {
		return nil, err
	}
	return b.Sum(prod), nil
}

// Sum returns the sum of the nonzeros of a matrix.
func (b *Builder) Sum(m *Matrix) *Node {
	sum := b.Const(0)
	for _, n := range m.nz {
		sum = b.Add(sum, n)
	}
	return sum
}
