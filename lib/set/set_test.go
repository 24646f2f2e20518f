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
package set_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/projectcalico/felixdispatch/lib/set"
)

var _ = Describe("Set", func() {
	var s set.Set[string]

	BeforeEach(func() {
		s = set.New[string]()
	})

	It("should be empty", func() {
		Expect(s.Len()).To(BeZero())
		Expect(s.Slice()).To(BeEmpty())
		Expect(s.String()).To(Equal("set.Set{}"))
	})

	Describe("after adding some items", func() {
		BeforeEach(func() {
			s.Add("tapa1")
			s.AddAll([]string{"tapa2", "tapb1"})
			s.Add("tapa1")
		})

		It("should contain them once each", func() {
			Expect(s.Len()).To(Equal(3))
			Expect(s.Contains("tapa1")).To(BeTrue())
			Expect(s.Contains("tapa2")).To(BeTrue())
			Expect(s.Contains("tapb1")).To(BeTrue())
			Expect(s.Contains("tapc1")).To(BeFalse())
			Expect(set.Sorted(s)).To(Equal([]string{"tapa1", "tapa2", "tapb1"}))
		})

		It("should discard items", func() {
			s.Discard("tapa1")
			s.Discard("tapc1")
			Expect(set.Sorted(s)).To(Equal([]string{"tapa2", "tapb1"}))
		})

		It("should compare by contents", func() {
			Expect(s.Equals(set.From("tapb1", "tapa2", "tapa1"))).To(BeTrue())
			Expect(s.Equals(set.From("tapb1", "tapa2"))).To(BeFalse())
			Expect(s.Equals(set.From("tapb1", "tapa2", "tapc1"))).To(BeFalse())
		})

		It("should copy", func() {
			c := s.Copy()
			c.Add("tapc1")
			Expect(s.Len()).To(Equal(3))
			Expect(c.Len()).To(Equal(4))
		})

		It("should add another set", func() {
			s.AddSet(set.From("tapb1", "tapc1"))
			Expect(set.Sorted(s)).To(Equal([]string{"tapa1", "tapa2", "tapb1", "tapc1"}))
		})

		It("should render as a string", func() {
			Expect(set.From("tapa1").String()).To(Equal("set.Set{tapa1}"))
		})

		It("should range over All", func() {
			var items []string
			for item := range s.All() {
				items = append(items, item)
			}
			Expect(items).To(ConsistOf("tapa1", "tapa2", "tapb1"))
		})

		It("should calculate the difference", func() {
			d := set.Difference(s, set.From("tapa2", "tapc1"))
			Expect(set.Sorted(d)).To(Equal([]string{"tapa1", "tapb1"}))
			Expect(set.Difference(s, s).Len()).To(BeZero())
		})
	})
})

var _ = Describe("Empty set", func() {
	It("should behave as an empty set", func() {
		e := set.Empty[string]()
		Expect(e.Len()).To(BeZero())
		Expect(e.Contains("tapa1")).To(BeFalse())
		Expect(e.Equals(set.New[string]())).To(BeTrue())
		Expect(e.Equals(set.From("tapa1"))).To(BeFalse())
		Expect(e.Slice()).To(BeNil())
		Expect(e.String()).To(Equal("set.Set{}"))
	})

	It("should copy to a mutable set", func() {
		c := set.Empty[string]().Copy()
		c.Add("tapa1")
		Expect(c.Len()).To(Equal(1))
	})

	It("should panic on Add", func() {
		Expect(func() { set.Empty[string]().Add("tapa1") }).To(Panic())
	})
})
