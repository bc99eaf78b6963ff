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
	"math"

	"github.com/gx-org/sx/build/op"
)

// Equal returns true if x and y compute the same expression,
// following at most depth levels of dependencies.
// At depth 0, two nodes are equal only if they are the same node.
// Operands of commutative operations are compared in both orders.
// Constants are compared bit by bit.
func Equal(x, y *Node, depth int) bool {
	if x == y {
		return true
	}
	if depth <= 0 || x == nil || y == nil || x.code != y.code {
		return false
	}
	switch x.code {
	case op.Const:
		return math.Float64bits(x.value) == math.Float64bits(y.value)
	case op.Symbol:
		return false
	}
	switch len(x.deps) {
	case 1:
		return Equal(x.deps[0], y.deps[0], depth-1)
	case 2:
		if Equal(x.deps[0], y.deps[0], depth-1) && Equal(x.deps[1], y.deps[1], depth-1) {
			return true
		}
		return x.code.Rule().Commutative &&
			Equal(x.deps[0], y.deps[1], depth-1) &&
			Equal(x.deps[1], y.deps[0], depth-1)
	}
	return false
}
