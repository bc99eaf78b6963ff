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

// Mask is a set of dependency bits. Each bit is an independent direction
// in sparsity propagation.
type Mask uint64

// SpForward propagates dependencies from the operands to the result.
// The result depends on every bit of its operands, including when the
// numerical value cancels.
func (c Code) SpForward(x, y Mask) Mask {
	switch c.Arity() {
	case 0:
		return 0
	case 1:
		return x
	}
	return x | y
}

// SpReverse propagates the bits required by the result to its operands.
func (c Code) SpReverse(r Mask, x, y *Mask) {
	switch c.Arity() {
	case 2:
		*y |= r
		fallthrough
	case 1:
		*x |= r
	}
}
