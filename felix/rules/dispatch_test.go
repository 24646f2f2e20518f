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

package rules_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/projectcalico/felixdispatch/felix/iptables"
	. "github.com/projectcalico/felixdispatch/felix/rules"
	"github.com/projectcalico/felixdispatch/lib/set"
)

const (
	dropTo   = `--append felix-TO-ENDPOINT --jump DROP -m comment --comment "To unknown endpoint"`
	dropFrom = `--append felix-FROM-ENDPOINT --jump DROP -m comment --comment "From unknown endpoint"`
)

// expectChainLines checks the chain's rules while ignoring the order of all but the last.
func expectChainLines(chain *iptables.Chain, expected ...string) {
	lines := chain.RuleLines()
	ExpectWithOffset(1, lines).To(ConsistOf(expected), "chain "+chain.Name)
	ExpectWithOffset(1, lines[len(lines)-1]).To(Equal(expected[len(expected)-1]), "last rule of "+chain.Name)
}

func permutations(strs []string) [][]string {
	if len(strs) <= 1 {
		return [][]string{append([]string(nil), strs...)}
	}
	var result [][]string
	for i := range strs {
		rest := append(append([]string(nil), strs[:i]...), strs[i+1:]...)
		for _, p := range permutations(rest) {
			result = append(result, append([]string{strs[i]}, p...))
		}
	}
	return result
}

var _ = DescribeTable("LongestCommonPrefix",
	func(strs []string, expected string, expectedOK bool) {
		for _, p := range permutations(strs) {
			prefix, ok := LongestCommonPrefix(p)
			Expect(ok).To(Equal(expectedOK))
			Expect(prefix).To(Equal(expected), "for permutation %v", p)
		}
	},
	Entry("empty", []string{}, "", false),
	Entry("single", []string{"a"}, "a", true),
	Entry("single empty", []string{""}, "", true),
	Entry("one empty", []string{"a", ""}, "", true),
	Entry("one is prefix of other", []string{"a", "ab"}, "a", true),
	Entry("equal", []string{"ab", "ab"}, "ab", true),
	Entry("three", []string{"ab", "ab", "abc"}, "ab", true),
	Entry("nothing in common", []string{"ab", "cd"}, "", true),
	Entry("interface names", []string{"tapabcd", "tapacdef"}, "tapa", true),
	Entry("multi-byte", []string{"tapé1", "tapè2"}, "tap\xc3", true),
	Entry("shared multi-byte", []string{"tapé1", "tapé2"}, "tapé", true),
	Entry("truncated multi-byte", []string{"tap\xc3", "tap\xc3\xa9"}, "tap\xc3", true),
	Entry("invalid UTF-8", []string{"tap\xff1", "tap\xff2", "tap\xff\xfe"}, "tap\xff", true),
)

var _ = Describe("DispatchRenderer", func() {
	var renderer *DispatchRenderer

	BeforeEach(func() {
		renderer = NewDispatchRenderer(DefaultDispatchConfig("tap", 4))
	})

	render := func(ifaces ...string) *DispatchChains {
		chains, err := renderer.DispatchChains(set.FromArray(ifaces))
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return chains
	}

	It("should render only the DROP rules with no interfaces", func() {
		chains := render()
		Expect(chains.To.Root.RuleLines()).To(Equal([]string{dropTo}))
		Expect(chains.From.Root.RuleLines()).To(Equal([]string{dropFrom}))
		Expect(chains.To.PrefixChains).To(BeEmpty())
		Expect(chains.From.LeafChains.Len()).To(BeZero())
	})

	It("should link interfaces in different groups directly from the root", func() {
		chains := render("tapabcdef", "tap123456", "tapb7d849")

		expectChainLines(chains.To.Root,
			"--append felix-TO-ENDPOINT --out-interface tapabcdef --goto felix-to-abcdef",
			"--append felix-TO-ENDPOINT --out-interface tap123456 --goto felix-to-123456",
			"--append felix-TO-ENDPOINT --out-interface tapb7d849 --goto felix-to-b7d849",
			dropTo,
		)
		expectChainLines(chains.From.Root,
			"--append felix-FROM-ENDPOINT --in-interface tapabcdef --goto felix-from-abcdef",
			"--append felix-FROM-ENDPOINT --in-interface tap123456 --goto felix-from-123456",
			"--append felix-FROM-ENDPOINT --in-interface tapb7d849 --goto felix-from-b7d849",
			dropFrom,
		)
		Expect(chains.To.PrefixChains).To(BeEmpty())
		Expect(chains.From.PrefixChains).To(BeEmpty())
		Expect(chains.To.LeafChains).To(Equal(set.From("felix-to-abcdef", "felix-to-123456", "felix-to-b7d849")))
	})

	Describe("with interfaces that share prefixes", func() {
		var chains *DispatchChains

		BeforeEach(func() {
			chains = render("tapa1", "tapa2", "tapa3", "tapb1", "tapb20123456789012345", "tapc")
		})

		It("should use wildcard matches for groups", func() {
			expectChainLines(chains.To.Root,
				"--append felix-TO-ENDPOINT --out-interface tapa+ --goto felix-TO-EP-PFX-a",
				"--append felix-TO-ENDPOINT --out-interface tapb+ --goto felix-TO-EP-PFX-b",
				"--append felix-TO-ENDPOINT --out-interface tapc --goto felix-to-c",
				dropTo,
			)
			expectChainLines(chains.From.Root,
				"--append felix-FROM-ENDPOINT --in-interface tapa+ --goto felix-FROM-EP-PFX-a",
				"--append felix-FROM-ENDPOINT --in-interface tapb+ --goto felix-FROM-EP-PFX-b",
				"--append felix-FROM-ENDPOINT --in-interface tapc --goto felix-from-c",
				dropFrom,
			)
		})

		It("should create one prefix chain per group", func() {
			Expect(chains.To.PrefixChains).To(HaveLen(2))
			expectChainLines(chains.To.PrefixChains[0],
				"--append felix-TO-EP-PFX-a --out-interface tapa1 --goto felix-to-a1",
				"--append felix-TO-EP-PFX-a --out-interface tapa2 --goto felix-to-a2",
				"--append felix-TO-EP-PFX-a --out-interface tapa3 --goto felix-to-a3",
				`--append felix-TO-EP-PFX-a --jump DROP -m comment --comment "To unknown endpoint"`,
			)
			expectChainLines(chains.To.PrefixChains[1],
				"--append felix-TO-EP-PFX-b --out-interface tapb1 --goto felix-to-b1",
				"--append felix-TO-EP-PFX-b --out-interface tapb20123456789012345 --goto felix-to-_477980b2a58e16d",
				`--append felix-TO-EP-PFX-b --jump DROP -m comment --comment "To unknown endpoint"`,
			)

			Expect(chains.From.PrefixChains).To(HaveLen(2))
			expectChainLines(chains.From.PrefixChains[0],
				"--append felix-FROM-EP-PFX-a --in-interface tapa1 --goto felix-from-a1",
				"--append felix-FROM-EP-PFX-a --in-interface tapa2 --goto felix-from-a2",
				"--append felix-FROM-EP-PFX-a --in-interface tapa3 --goto felix-from-a3",
				`--append felix-FROM-EP-PFX-a --jump DROP -m comment --comment "From unknown endpoint"`,
			)
			expectChainLines(chains.From.PrefixChains[1],
				"--append felix-FROM-EP-PFX-b --in-interface tapb1 --goto felix-from-b1",
				"--append felix-FROM-EP-PFX-b --in-interface tapb20123456789012345 --goto felix-from-_477980b2a58e16d",
				`--append felix-FROM-EP-PFX-b --jump DROP -m comment --comment "From unknown endpoint"`,
			)
		})

		It("should list the referenced leaf chains", func() {
			Expect(chains.To.LeafChains).To(Equal(set.From(
				"felix-to-a1", "felix-to-a2", "felix-to-a3",
				"felix-to-b1", "felix-to-_477980b2a58e16d", "felix-to-c",
			)))
			Expect(chains.From.LeafChains.Contains("felix-from-_477980b2a58e16d")).To(BeTrue())
		})

		It("should be deterministic", func() {
			again := render("tapc", "tapb20123456789012345", "tapb1", "tapa3", "tapa2", "tapa1")
			for _, dir := range Directions {
				ours := chains.ForDirection(dir).AllChains()
				theirs := again.ForDirection(dir).AllChains()
				Expect(theirs).To(HaveLen(len(ours)))
				for i := range ours {
					Expect(theirs[i].RuleLines()).To(Equal(ours[i].RuleLines()))
				}
			}
		})
	})

	It("should use the longest common prefix of the group as the wildcard", func() {
		chains := render("tapabc1", "tapabc2")
		expectChainLines(chains.To.Root,
			"--append felix-TO-ENDPOINT --out-interface tapabc+ --goto felix-TO-EP-PFX-a",
			dropTo,
		)
	})

	It("should treat interfaces without the prefix as their own group", func() {
		chains := render("eth0", "eth1", "tapa1", "tapa2")
		expectChainLines(chains.From.Root,
			"--append felix-FROM-ENDPOINT --in-interface eth0 --goto felix-from-eth0",
			"--append felix-FROM-ENDPOINT --in-interface eth1 --goto felix-from-eth1",
			"--append felix-FROM-ENDPOINT --in-interface tapa+ --goto felix-FROM-EP-PFX-a",
			dropFrom,
		)
		Expect(chains.From.PrefixChains).To(HaveLen(1))
	})

	It("should match an interface that is exactly the prefix on its own", func() {
		chains := render("tap", "tapa1")
		expectChainLines(chains.To.Root,
			"--append felix-TO-ENDPOINT --out-interface tap --goto felix-to-",
			"--append felix-TO-ENDPOINT --out-interface tapa1 --goto felix-to-a1",
			dropTo,
		)
	})

	It("should refuse to map two interfaces to the same leaf chain", func() {
		_, err := renderer.DispatchChains(set.From("tapabc", "abc"))
		Expect(err).To(HaveOccurred())
		var collision *LeafNameCollisionError
		Expect(errors.As(err, &collision)).To(BeTrue())
		Expect(collision.ChainName).To(Equal("felix-to-abc"))
		Expect(collision.Other).To(Equal("abc"))
		Expect(collision.Iface).To(Equal("tapabc"))
	})

	It("should keep hashed and natural names apart when names are truncated", func() {
		cfg := DefaultDispatchConfig("tap", 4)
		cfg.MaxChainNameLength = 20
		renderer = NewDispatchRenderer(cfg)

		chains := render("tapabcdefghijkl", "tap_550983b5")
		Expect(chains.From.LeafChains).To(Equal(set.From("felix-from-_550983b5", "felix-from-_7139ae16")))
		Expect(chains.To.LeafChains).To(Equal(set.From("felix-to-_550983b59e", "felix-to-_7139ae1696")))
	})
})
