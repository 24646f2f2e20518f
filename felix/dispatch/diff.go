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

package dispatch

import (
	log "github.com/sirupsen/logrus"

	"github.com/projectcalico/felixdispatch/felix/iptables"
	"github.com/projectcalico/felixdispatch/felix/rules"
	"github.com/projectcalico/felixdispatch/lib/set"
)

// Update is everything that the Applier needs to move the dataplane from one generation of
// dispatch chains to the next.
type Update struct {
	IPVersion uint8
	// Updates maps from each direction's root chain name to the complete contents of all that
	// direction's dispatch chains.
	Updates map[string]iptables.ChainUpdates
	// Deps maps from each direction's root chain name to the chain references within that
	// direction.
	Deps map[string]iptables.DependencyGraph
	// ToDelete contains dispatch chains that are no longer needed.
	ToDelete set.Set[string]
	// NewLeafChains contains workload chains that the previous generation did not refer to.
	// They are owned elsewhere but must exist before the update can be applied.
	NewLeafChains set.Set[string]
}

// AllUpdates flattens Updates across both directions.
func (u *Update) AllUpdates() iptables.ChainUpdates {
	all := iptables.ChainUpdates{}
	for _, updates := range u.Updates {
		for name, lines := range updates {
			all[name] = lines
		}
	}
	return all
}

// AllDeps flattens Deps across both directions.
func (u *Update) AllDeps() iptables.DependencyGraph {
	all := iptables.DependencyGraph{}
	for _, deps := range u.Deps {
		for name, children := range deps {
			all[name] = children
		}
	}
	return all
}

// CalculateUpdate compares the next generation against the previous one.  All of next's
// chains are included in full; chains are never patched in place.
func CalculateUpdate(prev, next *State, ipVersion uint8) *Update {
	u := &Update{
		IPVersion:     ipVersion,
		Updates:       map[string]iptables.ChainUpdates{},
		Deps:          map[string]iptables.DependencyGraph{},
		ToDelete:      set.Difference(prev.ChainNames(), next.ChainNames()),
		NewLeafChains: set.Difference(next.LeafChainNames(), prev.LeafChainNames()),
	}

	numChanged := 0
	for _, dir := range rules.Directions {
		ds := next.Directions[dir]
		prevChains := prev.Directions[dir].Chains
		updates := iptables.ChainUpdates{}
		deps := iptables.DependencyGraph{}
		for name, chain := range ds.Chains {
			updates[name] = chain.RuleLines()
			deps[name] = chain.ChainTargets()
			if !chain.EquivalentTo(prevChains[name]) {
				numChanged++
			}
		}
		u.Updates[ds.RootChain] = updates
		u.Deps[ds.RootChain] = deps
	}

	log.WithFields(log.Fields{
		"numChanged":    numChanged,
		"toDelete":      u.ToDelete,
		"newLeafChains": u.NewLeafChains.Len(),
	}).Debug("Calculated dispatch chain update.")
	return u
}
