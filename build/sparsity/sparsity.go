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

// Package sparsity implements column-compressed sparsity patterns.
package sparsity

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/gx-org/sx/build/fmterr"
)

// Pattern is the structure of a sparse matrix in compressed column storage.
// The nonzeros of column c have their row indices in row[colind[c]:colind[c+1]],
// sorted in increasing order.
//
// A pattern is immutable once built.
type Pattern struct {
	nrow, ncol int
	colind     []int
	row        []int
}

// Cell is the position of a structural nonzero.
type Cell struct {
	Row, Col int
}

var scalar = Dense(1, 1)

// Scalar returns the shared 1x1 dense pattern.
func Scalar() *Pattern {
	return scalar
}

// New returns a pattern from its compressed column representation.
// colind must have ncol+1 nondecreasing entries starting at 0 and
// row indices must be strictly increasing within each column.
func New(nrow, ncol int, colind, row []int) (*Pattern, error) {
	if nrow < 0 || ncol < 0 {
		return nil, fmterr.Consistencyf("negative pattern size %dx%d", nrow, ncol)
	}
	if len(colind) != ncol+1 {
		return nil, fmterr.Consistencyf("column index of length %d for %d columns: want %d", len(colind), ncol, ncol+1)
	}
	if colind[0] != 0 {
		return nil, fmterr.Consistencyf("column index starts at %d: want 0", colind[0])
	}
	if colind[ncol] != len(row) {
		return nil, fmterr.Consistencyf("column index ends at %d but the pattern has %d row indices", colind[ncol], len(row))
	}
	for c := range ncol {
		if colind[c+1] < colind[c] {
			return nil, fmterr.Consistencyf("column index decreases at column %d", c)
		}
		for k := colind[c]; k < colind[c+1]; k++ {
			r := row[k]
			if r < 0 || r >= nrow {
				return nil, fmterr.Consistencyf("row index %d at column %d out of range [0,%d)", r, c, nrow)
			}
			if k > colind[c] && row[k-1] >= r {
				return nil, fmterr.Consistencyf("row indices of column %d are not strictly increasing", c)
			}
		}
	}
	return &Pattern{
		nrow:   nrow,
		ncol:   ncol,
		colind: slices.Clone(colind),
		row:    slices.Clone(row),
	}, nil
}

// Dense returns a pattern with every entry structurally nonzero.
func Dense(nrow, ncol int) *Pattern {
	p := &Pattern{
		nrow:   nrow,
		ncol:   ncol,
		colind: make([]int, ncol+1),
		row:    make([]int, 0, nrow*ncol),
	}
	for c := range ncol {
		for r := range nrow {
			p.row = append(p.row, r)
		}
		p.colind[c+1] = p.colind[c] + nrow
	}
	return p
}

// Empty returns a pattern without any structural nonzero.
func Empty(nrow, ncol int) *Pattern {
	return &Pattern{
		nrow:   nrow,
		ncol:   ncol,
		colind: make([]int, ncol+1),
	}
}

// Triplet returns a pattern from a list of (row, column) coordinates.
// Duplicated coordinates are merged.
func Triplet(nrow, ncol int, cells []Cell) (*Pattern, error) {
	cells = slices.Clone(cells)
	for _, cell := range cells {
		if cell.Row < 0 || cell.Row >= nrow || cell.Col < 0 || cell.Col >= ncol {
			return nil, fmterr.Consistencyf("entry (%d,%d) out of range for a %dx%d pattern", cell.Row, cell.Col, nrow, ncol)
		}
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		if a.Col != b.Col {
			return a.Col - b.Col
		}
		return a.Row - b.Row
	})
	cells = slices.Compact(cells)
	p := &Pattern{
		nrow:   nrow,
		ncol:   ncol,
		colind: make([]int, ncol+1),
		row:    make([]int, len(cells)),
	}
	for k, cell := range cells {
		p.row[k] = cell.Row
		p.colind[cell.Col+1]++
	}
	for c := range ncol {
		p.colind[c+1] += p.colind[c]
	}
	return p, nil
}

// Rows returns the number of rows.
func (p *Pattern) Rows() int {
	return p.nrow
}

// Cols returns the number of columns.
func (p *Pattern) Cols() int {
	return p.ncol
}

// Numel returns the number of entries, zero or not.
func (p *Pattern) Numel() int {
	return p.nrow * p.ncol
}

// NNZ returns the number of structural nonzeros.
func (p *Pattern) NNZ() int {
	return len(p.row)
}

// ColInd returns a copy of the column offsets.
func (p *Pattern) ColInd() []int {
	return slices.Clone(p.colind)
}

// RowInd returns a copy of the row indices.
func (p *Pattern) RowInd() []int {
	return slices.Clone(p.row)
}

// IsDense returns true if every entry is a structural nonzero.
func (p *Pattern) IsDense() bool {
	return p.NNZ() == p.Numel()
}

// IsScalar returns true for a 1x1 pattern.
// If scalarAndDense is true, the only entry must also be a structural nonzero.
func (p *Pattern) IsScalar(scalarAndDense bool) bool {
	if p.nrow != 1 || p.ncol != 1 {
		return false
	}
	return !scalarAndDense || p.NNZ() == 1
}

// IsVector returns true if the pattern has a single row or a single column.
func (p *Pattern) IsVector() bool {
	return p.nrow == 1 || p.ncol == 1
}

// Find returns the index of the nonzero at (r, c) or false if (r, c) is structurally zero.
func (p *Pattern) Find(r, c int) (int, bool) {
	if c < 0 || c >= p.ncol {
		return 0, false
	}
	rows := p.row[p.colind[c]:p.colind[c+1]]
	k, found := slices.BinarySearch(rows, r)
	return p.colind[c] + k, found
}

// All returns the position of each structural nonzero, in storage order.
func (p *Pattern) All() iter.Seq2[int, Cell] {
	return func(yield func(int, Cell) bool) {
		for c := range p.ncol {
			for k := p.colind[c]; k < p.colind[c+1]; k++ {
				if !yield(k, Cell{Row: p.row[k], Col: c}) {
					return
				}
			}
		}
	}
}

// Equal returns true if both patterns have the same structure.
func (p *Pattern) Equal(q *Pattern) bool {
	if p == q {
		return true
	}
	return p.nrow == q.nrow && p.ncol == q.ncol &&
		slices.Equal(p.colind, q.colind) &&
		slices.Equal(p.row, q.row)
}

// Transpose returns the pattern of the transposed matrix and,
// for each nonzero of the result, the index of the nonzero in p.
func (p *Pattern) Transpose() (*Pattern, []int) {
	t := &Pattern{
		nrow:   p.ncol,
		ncol:   p.nrow,
		colind: make([]int, p.nrow+1),
		row:    make([]int, p.NNZ()),
	}
	for _, r := range p.row {
		t.colind[r+1]++
	}
	for c := range t.ncol {
		t.colind[c+1] += t.colind[c]
	}
	next := slices.Clone(t.colind[:t.ncol])
	mapping := make([]int, p.NNZ())
	for k, cell := range p.All() {
		dst := next[cell.Row]
		next[cell.Row]++
		t.row[dst] = cell.Col
		mapping[dst] = k
	}
	return t, mapping
}

// Compress returns the compressed representation of a pattern:
// [nrow, ncol, colind..., row...], or [nrow, ncol, 1] when the pattern is dense.
func (p *Pattern) Compress() []int {
	out := []int{p.nrow, p.ncol}
	if p.IsDense() && p.Numel() > 0 {
		return append(out, 1)
	}
	out = append(out, p.colind...)
	return append(out, p.row...)
}

// Decompress builds a pattern from its compressed representation.
func Decompress(v []int) (*Pattern, error) {
	if len(v) < 3 {
		return nil, fmterr.Consistencyf("compressed pattern %v too short", v)
	}
	nrow, ncol := v[0], v[1]
	if len(v) == 3 && v[2] == 1 && nrow*ncol > 0 {
		return Dense(nrow, ncol), nil
	}
	if ncol < 0 || len(v) < 2+ncol+1 {
		return nil, fmterr.Consistencyf("compressed pattern %v too short for %d columns", v, ncol)
	}
	colind := v[2 : 2+ncol+1]
	return New(nrow, ncol, colind, v[2+ncol+1:])
}

// String returns a short description of the pattern.
func (p *Pattern) String() string {
	if p.IsDense() {
		return fmt.Sprintf("%dx%d", p.nrow, p.ncol)
	}
	return fmt.Sprintf("%dx%d,%dnz", p.nrow, p.ncol, p.NNZ())
}

// Spy returns a textual picture of the pattern, one line per row.
func (p *Pattern) Spy() string {
	var b strings.Builder
	for r := range p.nrow {
		for c := range p.ncol {
			if _, ok := p.Find(r, c); ok {
				b.WriteByte('*')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
