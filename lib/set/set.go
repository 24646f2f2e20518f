// Copyright (c) 2016-2024 Tigera, Inc. All rights reserved.
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

package set

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
)

type Typed[T comparable] map[T]v

type v struct{}

var emptyValue = v{}

func New[T comparable]() Typed[T] {
	return make(Typed[T])
}

func From[T comparable](members ...T) Typed[T] {
	s := New[T]()
	s.AddAll(members)
	return s
}

func FromArray[T comparable](membersArray []T) Typed[T] {
	s := New[T]()
	s.AddAll(membersArray)
	return s
}

func Empty[T comparable]() Set[T] {
	return empty[T]{}
}

func (set Typed[T]) String() string {
	var buf strings.Builder
	_, _ = buf.WriteString("set.Set{")
	first := true
	for item := range set {
		if !first {
			buf.WriteString(",")
		} else {
			first = false
		}
		_, _ = fmt.Fprint(&buf, item)
	}
	_, _ = buf.WriteString("}")
	return buf.String()
}

func (set Typed[T]) Len() int {
	return len(set)
}

func (set Typed[T]) Add(item T) {
	set[item] = emptyValue
}

func (set Typed[T]) AddAll(itemArray []T) {
	for _, v := range itemArray {
		set.Add(v)
	}
}

// AddSet adds the contents of set "other" into the set.
func (set Typed[T]) AddSet(other Set[T]) {
	for item := range other.All() {
		set.Add(item)
	}
}

func (set Typed[T]) Discard(item T) {
	delete(set, item)
}

func (set Typed[T]) Contains(item T) bool {
	_, present := set[item]
	return present
}

func (set Typed[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for item := range set {
			if !yield(item) {
				return
			}
		}
	}
}

func (set Typed[T]) Copy() Set[T] {
	cpy := New[T]()
	for item := range set {
		cpy.Add(item)
	}
	return cpy
}

func (set Typed[T]) Slice() (s []T) {
	for item := range set {
		s = append(s, item)
	}
	return
}

func (set Typed[T]) Equals(other Set[T]) bool {
	if set.Len() != other.Len() {
		return false
	}
	for item := range set {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}

// Sorted returns the members of the set in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	items := s.Slice()
	slices.Sort(items)
	return items
}

// Difference returns the members of a that are not in b.
func Difference[T comparable](a, b Set[T]) Set[T] {
	result := New[T]()
	for item := range a.All() {
		if !b.Contains(item) {
			result.Add(item)
		}
	}
	return result
}
