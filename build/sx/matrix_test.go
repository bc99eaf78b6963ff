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

package sx_test

import (
	"strings"
	"testing"

	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/gx-org/sx/build/sx"
)

func TestElementwise(t *testing.T) {
	b := sx.New()
	x := b.SymMatrix("x", sparsity.Dense(2, 1))
	y := b.SymMatrix("y", sparsity.Dense(2, 1))
	s := sx.Scalar(b.Sym("s"))
	tests := []struct {
		x, y *sx.Matrix
		want string
	}{
		{x: x, y: y, want: "2x1[(x_0+y_0), (x_1+y_1)]"},
		{x: s, y: x, want: "2x1[(s+x_0), (s+x_1)]"},
		{x: x, y: s, want: "2x1[(x_0+s), (x_1+s)]"},
		{x: s, y: s, want: "(s+s)"},
	}
	for i, test := range tests {
		got, err := b.Elementwise(op.Add, test.x, test.y)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if got.String() != test.want {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
	}
}

func TestElementwiseBroadcastSparse(t *testing.T) {
	b := sx.New()
	sp, err := sparsity.New(2, 1, []int{0, 1}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	y := b.SymMatrix("y", sp)
	s := sx.Scalar(b.Sym("s"))
	tests := []struct {
		code op.Code
		x, y *sx.Matrix
		want string
	}{
		{code: op.Add, x: s, y: y, want: "2x1[(s+y_0), s]"},
		{code: op.Add, x: y, y: s, want: "2x1[(y_0+s), s]"},
		{code: op.Div, x: y, y: s, want: "2x1[(y_0/s), (0/s)]"},
		{code: op.Mul, x: s, y: y, want: "2x1,1nz[(s*y_0)]"},
		{code: op.Mul, x: y, y: s, want: "2x1,1nz[(y_0*s)]"},
	}
	for i, test := range tests {
		got, err := b.Elementwise(test.code, test.x, test.y)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if got.String() != test.want {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
	}
	sum, err := b.Elementwise(op.Add, s, y)
	if err != nil {
		t.Fatal(err)
	}
	if got := sum.Get(1, 0); got == nil || got.Name() != "s" {
		t.Errorf("got entry (1,0) = %v but want s", got)
	}
}

func TestElementwiseErrors(t *testing.T) {
	b := sx.New()
	x := b.SymMatrix("x", sparsity.Dense(2, 1))
	y := b.SymMatrix("y", sparsity.Dense(1, 2))
	tests := []struct {
		code op.Code
		x, y *sx.Matrix
	}{
		{code: op.Add, x: x, y: y},
		{code: op.Sin, x: x, y: x},
	}
	for i, test := range tests {
		if _, err := b.Elementwise(test.code, test.x, test.y); !fmterr.IsConsistency(err) {
			t.Errorf("test %d: got error %v but want a consistency error", i, err)
		}
	}
	if _, err := sx.NewMatrix(sparsity.Dense(2, 2), x.Nonzeros()); !fmterr.IsConsistency(err) {
		t.Errorf("got error %v but want a consistency error", err)
	}
	if _, err := b.ConstMatrix(sparsity.Dense(2, 2), []float64{1}); !fmterr.IsConsistency(err) {
		t.Errorf("got error %v but want a consistency error", err)
	}
	if _, err := b.Map(op.Add, x); !fmterr.IsConsistency(err) {
		t.Errorf("got error %v but want a consistency error", err)
	}
}

func TestDot(t *testing.T) {
	b := sx.New()
	x := b.SymMatrix("x", sparsity.Dense(2, 1))
	c, err := b.ConstMatrix(sparsity.Dense(2, 1), []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	dot, err := b.Dot(x, c)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := dot.String(), "(x_0+(x_1*2))"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
}

func TestTree(t *testing.T) {
	b := sx.New()
	x, y := b.Sym("x"), b.Sym("y")
	u := b.Sin(x)
	e := b.Add(u, b.Mul(u, y))
	tree := sx.Tree(e)
	for _, want := range []string{"#0 add", "#1 sin", "#2 symbol x", "#3 mul", "#4 symbol y"} {
		if !strings.Contains(tree, want) {
			t.Errorf("tree\n%s\ndoes not contain %q", tree, want)
		}
	}
	if got := strings.Count(tree, "#1"); got != 2 {
		t.Errorf("shared node #1 appears %d times but want 2 in\n%s", got, tree)
	}
}
