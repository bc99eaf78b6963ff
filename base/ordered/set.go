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

// Package ordered provides containers remembering insertion order.
package ordered

import "iter"

// Set of comparable elements iterated in the order in which they were first added.
type Set[K comparable] struct {
	keys []K
	in   map[K]int
}

// NewSet returns a new empty set.
func NewSet[K comparable]() *Set[K] {
	return &Set[K]{in: make(map[K]int)}
}

// Add an element to the set.
// Returns true if the element was not in the set before.
func (s *Set[K]) Add(k K) bool {
	if _, ok := s.in[k]; ok {
		return false
	}
	s.in[k] = len(s.keys)
	s.keys = append(s.keys, k)
	return true
}

// Has returns true if the element is in the set.
func (s *Set[K]) Has(k K) bool {
	_, ok := s.in[k]
	return ok
}

// Index returns the insertion index of an element.
func (s *Set[K]) Index(k K) (int, bool) {
	i, ok := s.in[k]
	return i, ok
}

// All iterates over the elements in insertion order.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for _, k := range s.keys {
			if !yield(k) {
				return
			}
		}
	}
}

// Size returns the number of elements in the set.
func (s *Set[K]) Size() int {
	return len(s.keys)
}
