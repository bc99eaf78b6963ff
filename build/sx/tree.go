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
	"strconv"

	"github.com/xlab/treeprint"
)

// Tree returns a textual dump of expression graphs.
// A node shared by several expressions is expanded once and
// then referred to by its identifier.
func Tree(nodes ...*Node) string {
	ids := make(map[*Node]int)
	root := treeprint.NewWithRoot("sx")
	var add func(parent treeprint.Tree, n *Node)
	add = func(parent treeprint.Tree, n *Node) {
		if id, ok := ids[n]; ok {
			parent.AddNode(fmt.Sprintf("#%d", id))
			return
		}
		id := len(ids)
		ids[n] = id
		label := fmt.Sprintf("#%d %s", id, n.code)
		switch {
		case n.IsConst():
			label += " " + strconv.FormatFloat(n.value, 'g', -1, 64)
		case n.IsSymbolic():
			label += " " + n.name
		}
		if len(n.deps) == 0 {
			parent.AddNode(label)
			return
		}
		branch := parent.AddBranch(label)
		for _, dep := range n.deps {
			add(branch, dep)
		}
	}
	for _, n := range nodes {
		add(root, n)
	}
	return root.String()
}
