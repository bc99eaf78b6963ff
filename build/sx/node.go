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

// Package sx builds scalar expression graphs.
//
// Nodes are created by a Builder which applies a set of rewrite rules
// before allocating a new node. A node is immutable once created and
// can be shared by any number of graphs.
package sx

import (
	"strconv"

	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
)

// Node is an elementary operation in an expression graph.
type Node struct {
	code  op.Code
	deps  []*Node
	value float64
	name  string
}

// Code returns the operation computed by the node.
func (n *Node) Code() op.Code {
	return n.code
}

// NumDeps returns the number of operands of the node.
func (n *Node) NumDeps() int {
	return len(n.deps)
}

// Dep returns the ith operand of the node.
func (n *Node) Dep(i int) *Node {
	return n.deps[i]
}

// Value returns the value of a constant node.
func (n *Node) Value() float64 {
	return n.value
}

// Name returns the name of a symbolic node.
func (n *Node) Name() string {
	return n.name
}

// IsConst returns true if the node is a numerical constant.
func (n *Node) IsConst() bool {
	return n.code == op.Const
}

// IsSymbolic returns true if the node is a free symbol.
func (n *Node) IsSymbolic() bool {
	return n.code == op.Symbol
}

// IsValue returns true if the node is a constant numerically equal to v.
func (n *Node) IsValue(v float64) bool {
	return n.code == op.Const && n.value == v
}

// IsZero returns true if the node is the constant 0.
func (n *Node) IsZero() bool {
	return n.IsValue(0)
}

// Sparsity of a scalar node.
func (n *Node) Sparsity() *sparsity.Pattern {
	return sparsity.Scalar()
}

// String returns the expression computed by the node.
// Shared subexpressions are repeated.
func (n *Node) String() string {
	switch n.code {
	case op.Const:
		return strconv.FormatFloat(n.value, 'g', -1, 64)
	case op.Symbol:
		return n.name
	}
	args := [2]string{}
	for i, dep := range n.deps {
		args[i] = dep.String()
	}
	switch n.code {
	case op.Assign:
		return "assign(" + args[0] + ")"
	case op.Lift:
		return "lift(" + args[0] + "," + args[1] + ")"
	}
	return n.code.Emit(args[0], args[1])
}
