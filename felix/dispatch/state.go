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
	"github.com/projectcalico/felixdispatch/felix/iptables"
	"github.com/projectcalico/felixdispatch/felix/rules"
	"github.com/projectcalico/felixdispatch/lib/set"
)

// DirectionState is the programmed state of one direction's dispatch chains.
type DirectionState struct {
	RootChain string
	// Chains holds the root and prefix chains, by name.
	Chains map[string]*iptables.Chain
	// LeafChains holds the names of the workload chains that the dispatch chains refer to.
	LeafChains set.Set[string]
}

// State is one complete generation of dispatch chains, along with the interfaces that it was
// calculated from.  A State is never modified once it has been built.
type State struct {
	Interfaces set.Set[string]
	Directions map[rules.Direction]*DirectionState
}

// NewState returns the empty state, with no interfaces and no chains.
func NewState() *State {
	s := &State{
		Interfaces: set.New[string](),
		Directions: map[rules.Direction]*DirectionState{},
	}
	for _, dir := range rules.Directions {
		s.Directions[dir] = &DirectionState{
			Chains:     map[string]*iptables.Chain{},
			LeafChains: set.New[string](),
		}
	}
	return s
}

func newStateFromChains(ifaces set.Set[string], chains *rules.DispatchChains) *State {
	s := &State{
		Interfaces: ifaces.Copy(),
		Directions: map[rules.Direction]*DirectionState{},
	}
	for _, dir := range rules.Directions {
		dc := chains.ForDirection(dir)
		ds := &DirectionState{
			RootChain:  dc.Root.Name,
			Chains:     map[string]*iptables.Chain{},
			LeafChains: dc.LeafChains.Copy(),
		}
		for _, c := range dc.AllChains() {
			ds.Chains[c.Name] = c
		}
		s.Directions[dir] = ds
	}
	return s
}

// ChainNames returns the names of all the root and prefix chains, in both directions.
func (s *State) ChainNames() set.Set[string] {
	names := set.New[string]()
	for _, ds := range s.Directions {
		for name := range ds.Chains {
			names.Add(name)
		}
	}
	return names
}

// LeafChainNames returns the names of all referenced workload chains, in both directions.
func (s *State) LeafChainNames() set.Set[string] {
	names := set.New[string]()
	for _, ds := range s.Directions {
		names.AddSet(ds.LeafChains)
	}
	return names
}

func (s *State) numPrefixChains() int {
	n := 0
	for _, ds := range s.Directions {
		// Every direction has exactly one root chain.
		n += len(ds.Chains) - 1
	}
	return n
}
