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
	"iter"

	log "github.com/sirupsen/logrus"
)

type empty[T comparable] struct{}

func (empty[T]) Len() int {
	return 0
}

func (empty[T]) Add(T) {
	log.Panic("Add on empty set")
}

func (empty[T]) AddAll([]T) {
	log.Panic("AddAll on empty set")
}

func (empty[T]) AddSet(Set[T]) {
	log.Panic("AddSet on empty set")
}

func (empty[T]) Discard(T) {}

func (empty[T]) Contains(T) bool {
	return false
}

func (empty[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {}
}

func (empty[T]) Copy() Set[T] {
	return New[T]()
}

func (empty[T]) Equals(other Set[T]) bool {
	return other.Len() == 0
}

func (empty[T]) Slice() []T {
	return nil
}

func (empty[T]) String() string {
	return "set.Set{}"
}
