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

package cli

import (
	"fmt"

	"github.com/gx-org/sx/build/op"
	"github.com/spf13/cobra"
)

func newOpsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the atomic operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for c := range op.Codes() {
				if c.IsLeaf() {
					continue
				}
				r := c.Rule()
				line := fmt.Sprintf("%-14s %d", r.Name, r.Arity)
				if r.Commutative {
					line += " commutative"
				}
				if r.Helper != op.NoHelper {
					line += " helper=" + r.Helper.String()
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}
