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
	"crypto/sha256"
	"encoding/hex"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/projectcalico/felixdispatch/felix/iptables"
)

const (
	ChainNamePrefix = "felix-"

	ChainToEndpoint   = ChainNamePrefix + "TO-ENDPOINT"
	ChainFromEndpoint = ChainNamePrefix + "FROM-ENDPOINT"

	ChainToEndpointPrefixPfx   = ChainNamePrefix + "TO-EP-PFX-"
	ChainFromEndpointPrefixPfx = ChainNamePrefix + "FROM-EP-PFX-"

	WorkloadToEndpointPfx   = ChainNamePrefix + "to-"
	WorkloadFromEndpointPfx = ChainNamePrefix + "from-"

	DropCommentToUnknownEndpoint   = "To unknown endpoint"
	DropCommentFromUnknownEndpoint = "From unknown endpoint"

	// DefaultMaxLeafSuffixLength limits the part of a leaf chain name that comes from the
	// interface name.
	DefaultMaxLeafSuffixLength = 16
	// ShortenedPrefix marks a leaf chain suffix that was replaced by a hash.
	ShortenedPrefix = "_"
)

type Direction int

const (
	// DirTo covers packets going to a workload, matched on the outbound interface.
	DirTo Direction = iota
	// DirFrom covers packets coming from a workload, matched on the inbound interface.
	DirFrom
)

var Directions = []Direction{DirTo, DirFrom}

func (d Direction) String() string {
	switch d {
	case DirTo:
		return "to"
	case DirFrom:
		return "from"
	}
	return "unknown"
}

// ifaceMatch returns the interface match for this direction.
func (d Direction) ifaceMatch(ifaceMatch string) iptables.MatchCriteria {
	if d == DirTo {
		return iptables.Match().OutInterface(ifaceMatch)
	}
	return iptables.Match().InInterface(ifaceMatch)
}

// ChainTemplates holds the naming conventions for one direction's dispatch chains.
type ChainTemplates struct {
	// RootChain is the fixed name of the top-level dispatch chain.
	RootChain string
	// PrefixChainPfx is prepended to the group key to name a prefix chain.
	PrefixChainPfx string
	// LeafChainPfx is prepended to the interface suffix to name a workload's own chain.
	LeafChainPfx string
	DropComment  string
}

func DefaultChainTemplates(dir Direction) ChainTemplates {
	if dir == DirTo {
		return ChainTemplates{
			RootChain:      ChainToEndpoint,
			PrefixChainPfx: ChainToEndpointPrefixPfx,
			LeafChainPfx:   WorkloadToEndpointPfx,
			DropComment:    DropCommentToUnknownEndpoint,
		}
	}
	return ChainTemplates{
		RootChain:      ChainFromEndpoint,
		PrefixChainPfx: ChainFromEndpointPrefixPfx,
		LeafChainPfx:   WorkloadFromEndpointPfx,
		DropComment:    DropCommentFromUnknownEndpoint,
	}
}

// DispatchConfig is the immutable configuration shared by the name encoder and the dispatch
// chain renderer.
type DispatchConfig struct {
	IfacePrefix         string
	IPVersion           uint8
	MaxChainNameLength  int
	MaxLeafSuffixLength int
	To                  ChainTemplates
	From                ChainTemplates
}

func DefaultDispatchConfig(ifacePrefix string, ipVersion uint8) DispatchConfig {
	return DispatchConfig{
		IfacePrefix:         ifacePrefix,
		IPVersion:           ipVersion,
		MaxChainNameLength:  iptables.MaxChainNameLength,
		MaxLeafSuffixLength: DefaultMaxLeafSuffixLength,
		To:                  DefaultChainTemplates(DirTo),
		From:                DefaultChainTemplates(DirFrom),
	}
}

func (c DispatchConfig) Templates(dir Direction) ChainTemplates {
	if dir == DirTo {
		return c.To
	}
	return c.From
}

// NameEncoder maps interface names to the names of the per-workload (leaf) chains.
type NameEncoder struct {
	ifacePrefix     string
	maxNameLen      int
	maxSuffixLen    int
	leafChainPrefix map[Direction]string
}

func NewNameEncoder(cfg DispatchConfig) *NameEncoder {
	return &NameEncoder{
		ifacePrefix:  cfg.IfacePrefix,
		maxNameLen:   cfg.MaxChainNameLength,
		maxSuffixLen: cfg.MaxLeafSuffixLength,
		leafChainPrefix: map[Direction]string{
			DirTo:   cfg.To.LeafChainPfx,
			DirFrom: cfg.From.LeafChainPfx,
		},
	}
}

// LeafChainName returns the name of the workload chain for the given interface.  The interface
// prefix is stripped, if present.  If the remaining suffix is too long, it is replaced with a
// hash of the whole interface name so that the result always fits.
func (e *NameEncoder) LeafChainName(ifaceName string, dir Direction) string {
	chainPfx := e.leafChainPrefix[dir]
	suffix := strings.TrimPrefix(ifaceName, e.ifacePrefix)
	if !e.needsShortening(chainPfx, suffix) {
		return chainPfx + suffix
	}

	hash := sha256.Sum256([]byte(ifaceName))
	hexHash := hex.EncodeToString(hash[:])
	name := chainPfx + ShortenedPrefix + hexHash[:e.maxSuffixLen-len(ShortenedPrefix)]
	if len(name) > e.maxNameLen {
		name = name[:e.maxNameLen]
	}
	log.WithFields(log.Fields{
		"ifaceName": ifaceName,
		"chainName": name,
	}).Debug("Shortened leaf chain name.")
	return name
}

func (e *NameEncoder) needsShortening(chainPfx, suffix string) bool {
	if len(suffix) > e.maxSuffixLen || len(chainPfx)+len(suffix) > e.maxNameLen {
		return true
	}
	// A shortened name may be truncated to fit the chain name limit so any suffix that starts
	// like one could clash with a real hash.
	return strings.HasPrefix(suffix, ShortenedPrefix)
}
