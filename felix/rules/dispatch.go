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

package rules

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/projectcalico/felixdispatch/felix/iptables"
	"github.com/projectcalico/felixdispatch/lib/set"
)

// LeafNameCollisionError is returned when two different interfaces map to the same leaf chain.
// Programming either would send one workload's traffic through the other's policy so the
// whole calculation is abandoned.
type LeafNameCollisionError struct {
	ChainName string
	Iface     string
	Other     string
}

func (e *LeafNameCollisionError) Error() string {
	return fmt.Sprintf("interfaces %q and %q both map to chain %q", e.Other, e.Iface, e.ChainName)
}

// DispatchRenderer calculates the dispatch chains that send packets to/from each local workload
// interface to that workload's own chains.
//
// To keep the root chains short, interfaces are grouped on the first character after the
// interface prefix.  A group with more than one member gets a prefix chain, which the root
// chain reaches with a single wildcard match:
//
//	felix-TO-ENDPOINT:  --out-interface tapa+ --goto felix-TO-EP-PFX-a
//	felix-TO-EP-PFX-a:  --out-interface tapa1 --goto felix-to-a1
//	                    --out-interface tapa2 --goto felix-to-a2
//
// An interface that is alone in its group is matched directly from the root chain.  Every
// root and prefix chain ends with a DROP for unknown interfaces.
type DispatchRenderer struct {
	config      DispatchConfig
	nameEncoder *NameEncoder
}

func NewDispatchRenderer(cfg DispatchConfig) *DispatchRenderer {
	return &DispatchRenderer{
		config:      cfg,
		nameEncoder: NewNameEncoder(cfg),
	}
}

// DirectionalChains holds one direction's worth of dispatch chains.
type DirectionalChains struct {
	Direction Direction
	Root      *iptables.Chain
	// PrefixChains is sorted by name.
	PrefixChains []*iptables.Chain
	// LeafChains contains the names of the workload chains that are referenced.
	LeafChains set.Set[string]
}

// AllChains returns the root chain followed by the prefix chains.
func (d *DirectionalChains) AllChains() []*iptables.Chain {
	return append([]*iptables.Chain{d.Root}, d.PrefixChains...)
}

type DispatchChains struct {
	To   *DirectionalChains
	From *DirectionalChains
}

func (d *DispatchChains) ForDirection(dir Direction) *DirectionalChains {
	if dir == DirTo {
		return d.To
	}
	return d.From
}

// ifaceGroup is a set of interfaces that share the character after the interface prefix.
// Interfaces without the prefix, or with nothing after it, are always alone in their group.
type ifaceGroup struct {
	key     string
	pfxChar string
	members []string
}

// DispatchChains calculates the complete set of dispatch chains for the given interfaces.
// The output only depends on the contents of ifaces.
func (r *DispatchRenderer) DispatchChains(ifaces set.Set[string]) (*DispatchChains, error) {
	groups := r.groupInterfaces(ifaces)
	result := &DispatchChains{}
	for _, dir := range Directions {
		chains, err := r.renderDirection(dir, groups)
		if err != nil {
			return nil, err
		}
		if dir == DirTo {
			result.To = chains
		} else {
			result.From = chains
		}
	}
	log.WithFields(log.Fields{
		"numIfaces":       ifaces.Len(),
		"numGroups":       len(groups),
		"numPrefixChains": len(result.To.PrefixChains),
	}).Debug("Calculated dispatch chains.")
	return result, nil
}

func (r *DispatchRenderer) groupInterfaces(ifaces set.Set[string]) []ifaceGroup {
	byKey := map[string]*ifaceGroup{}
	for iface := range ifaces.All() {
		key, pfxChar := r.groupKey(iface)
		g := byKey[key]
		if g == nil {
			g = &ifaceGroup{key: key, pfxChar: pfxChar}
			byKey[key] = g
		}
		g.members = append(g.members, iface)
	}

	groups := make([]ifaceGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.Strings(g.members)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].key < groups[j].key
	})
	return groups
}

func (r *DispatchRenderer) groupKey(iface string) (key, pfxChar string) {
	if !strings.HasPrefix(iface, r.config.IfacePrefix) || len(iface) == len(r.config.IfacePrefix) {
		return iface, ""
	}
	_, size := utf8.DecodeRuneInString(iface[len(r.config.IfacePrefix):])
	key = iface[:len(r.config.IfacePrefix)+size]
	return key, key[len(r.config.IfacePrefix):]
}

func (r *DispatchRenderer) renderDirection(dir Direction, groups []ifaceGroup) (*DirectionalChains, error) {
	templates := r.config.Templates(dir)
	leafOwners := map[string]string{}
	leafChainName := func(iface string) (string, error) {
		name := r.nameEncoder.LeafChainName(iface, dir)
		if other, ok := leafOwners[name]; ok && other != iface {
			return "", &LeafNameCollisionError{ChainName: name, Iface: iface, Other: other}
		}
		leafOwners[name] = iface
		return name, nil
	}

	result := &DirectionalChains{
		Direction:  dir,
		LeafChains: set.New[string](),
	}
	var rootRules []iptables.Rule
	for _, g := range groups {
		if len(g.members) == 1 {
			iface := g.members[0]
			leaf, err := leafChainName(iface)
			if err != nil {
				return nil, err
			}
			result.LeafChains.Add(leaf)
			rootRules = append(rootRules, r.gotoRule(dir, iface, leaf))
			continue
		}

		commonPrefix, _ := LongestCommonPrefix(g.members)
		pfxChain := &iptables.Chain{Name: templates.PrefixChainPfx + g.pfxChar}
		for _, iface := range g.members {
			leaf, err := leafChainName(iface)
			if err != nil {
				return nil, err
			}
			result.LeafChains.Add(leaf)
			pfxChain.Rules = append(pfxChain.Rules, r.gotoRule(dir, iface, leaf))
		}
		pfxChain.Rules = append(pfxChain.Rules, r.dropRule(dir))
		result.PrefixChains = append(result.PrefixChains, pfxChain)
		rootRules = append(rootRules, r.gotoRule(dir, commonPrefix+"+", pfxChain.Name))
	}
	rootRules = append(rootRules, r.dropRule(dir))
	result.Root = &iptables.Chain{
		Name:  templates.RootChain,
		Rules: rootRules,
	}
	return result, nil
}

func (r *DispatchRenderer) gotoRule(dir Direction, ifaceMatch, target string) iptables.Rule {
	return iptables.Rule{
		Match:  dir.ifaceMatch(ifaceMatch),
		Action: iptables.GotoAction{Target: target},
	}
}

func (r *DispatchRenderer) dropRule(dir Direction) iptables.Rule {
	return iptables.Rule{
		Action:  iptables.DropAction{},
		Comment: []string{r.config.Templates(dir).DropComment},
	}
}

// LongestCommonPrefix returns the longest byte string that is a prefix of all of strs.  ok is
// false if strs is empty.  The result doesn't depend on the order of strs.
//
// Interface names are arbitrary bytes and iptables' "+" wildcard matches bytes, so the result
// may end part way through a multi-byte character.
func LongestCommonPrefix(strs []string) (prefix string, ok bool) {
	if len(strs) == 0 {
		return "", false
	}
	first := strs[0]
	end := len(first)
	for _, s := range strs[1:] {
		if len(s) < end {
			end = len(s)
		}
		for i := 0; i < end; i++ {
			if s[i] != first[i] {
				end = i
				break
			}
		}
	}
	return first[:end], true
}
