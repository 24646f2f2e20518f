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

package iptables

import (
	"fmt"
	"strings"

	"github.com/projectcalico/felixdispatch/lib/set"
)

const (
	// MaxChainNameLength is the longest chain name that the kernel accepts.
	MaxChainNameLength = 28
	// MaxCommentLength is the longest comment that the comment match accepts.
	MaxCommentLength = 256
)

type Rule struct {
	Match   MatchCriteria
	Action  Action
	Comment []string
}

// RenderAppend renders the rule as an "--append" line for the given chain, in the format
// accepted by iptables-restore.
func (r Rule) RenderAppend(chainName string) string {
	fragments := make([]string, 0, 4+len(r.Comment))
	fragments = append(fragments, "--append", chainName)
	if !r.Match.IsEmpty() {
		fragments = append(fragments, r.Match.Render())
	}
	fragments = append(fragments, r.Action.ToFragment())
	for _, c := range r.Comment {
		fragments = append(fragments, commentFragment(c))
	}
	return strings.Join(fragments, " ")
}

func commentFragment(comment string) string {
	comment = strings.ReplaceAll(comment, `"`, `'`)
	if len(comment) > MaxCommentLength {
		comment = comment[:MaxCommentLength]
	}
	return fmt.Sprintf(`-m comment --comment "%s"`, comment)
}

type Chain struct {
	Name  string
	Rules []Rule
}

// RuleLines renders every rule in the chain, in order.
func (c *Chain) RuleLines() []string {
	lines := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		lines[i] = r.RenderAppend(c.Name)
	}
	return lines
}

// ChainTargets returns the names of the chains that this chain passes packets to.  Built-in
// targets such as DROP are not included.
func (c *Chain) ChainTargets() set.Set[string] {
	targets := set.New[string]()
	for _, r := range c.Rules {
		if t, ok := ChainTarget(r.Action); ok {
			targets.Add(t)
		}
	}
	return targets
}

// EquivalentTo returns true if the two chains have the same name, the same final rule and the
// same set of preceding rules.  The order of the preceding rules is ignored; dispatch chains
// only contain mutually-exclusive matches so their order has no effect.
func (c *Chain) EquivalentTo(other *Chain) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Name != other.Name || len(c.Rules) != len(other.Rules) {
		return false
	}
	if len(c.Rules) == 0 {
		return true
	}
	ours := c.RuleLines()
	theirs := other.RuleLines()
	last := len(ours) - 1
	if ours[last] != theirs[last] {
		return false
	}
	counts := map[string]int{}
	for _, l := range ours[:last] {
		counts[l]++
	}
	for _, l := range theirs[:last] {
		counts[l]--
		if counts[l] < 0 {
			return false
		}
	}
	return true
}

// ChainUpdates maps from chain name to the complete, rendered contents of that chain.
type ChainUpdates map[string][]string

// DependencyGraph maps from a chain name to the names of the chains that it references.  A
// referenced chain must exist before (or be created in the same transaction as) the chain
// that references it.
type DependencyGraph map[string]set.Set[string]
