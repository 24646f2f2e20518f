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

package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/projectcalico/felixdispatch/felix/iptables"
	"github.com/projectcalico/felixdispatch/felix/rules"
)

// EnvConfigPrefix is the prefix of the environment variables read by LoadConfig, for example
// FELIX_INTERFACE_PREFIX.
const EnvConfigPrefix = "FELIX"

// minHashDigits is the fewest hex digits of hash that we'll put in a shortened chain name.
const minHashDigits = 8

// Config is fixed for the lifetime of the dispatch controller.
type Config struct {
	// InterfacePrefix is the prefix of the names of local workload interfaces.
	InterfacePrefix string `split_words:"true" default:"tap"`
	IPVersion       uint8  `envconfig:"IP_VERSION" default:"4"`

	MaxChainNameLength  int `split_words:"true" default:"28"`
	MaxLeafSuffixLength int `split_words:"true" default:"16"`

	// MailboxSize is the number of requests that can be queued for the controller before
	// callers block.
	MailboxSize int `split_words:"true" default:"100"`

	LogLevel string `split_words:"true" default:"info"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(EnvConfigPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config from environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New returns the default configuration for the given interface prefix and IP version.
func New(ifacePrefix string, ipVersion uint8) *Config {
	return &Config{
		InterfacePrefix:     ifacePrefix,
		IPVersion:           ipVersion,
		MaxChainNameLength:  iptables.MaxChainNameLength,
		MaxLeafSuffixLength: rules.DefaultMaxLeafSuffixLength,
		MailboxSize:         100,
		LogLevel:            "info",
	}
}

func (c *Config) Validate() error {
	if c.InterfacePrefix == "" {
		return errors.New("InterfacePrefix must not be empty")
	}
	if c.IPVersion != 4 && c.IPVersion != 6 {
		return errors.Errorf("IPVersion must be 4 or 6, not %d", c.IPVersion)
	}
	if c.MailboxSize < 0 {
		return errors.Errorf("MailboxSize must not be negative, not %d", c.MailboxSize)
	}
	// The hash is hex-encoded SHA-256 so there are at most 64 digits to use.
	if c.MaxLeafSuffixLength < len(rules.ShortenedPrefix)+minHashDigits ||
		c.MaxLeafSuffixLength > len(rules.ShortenedPrefix)+64 {
		return errors.Errorf("MaxLeafSuffixLength must be between %d and %d, not %d",
			len(rules.ShortenedPrefix)+minHashDigits, len(rules.ShortenedPrefix)+64, c.MaxLeafSuffixLength)
	}
	dc := c.DispatchConfig()
	for _, dir := range rules.Directions {
		t := dc.Templates(dir)
		minLen := len(t.LeafChainPfx) + len(rules.ShortenedPrefix) + minHashDigits
		if len(t.RootChain) > minLen {
			minLen = len(t.RootChain)
		}
		if len(t.PrefixChainPfx)+1 > minLen {
			minLen = len(t.PrefixChainPfx) + 1
		}
		if c.MaxChainNameLength < minLen {
			return errors.Errorf("MaxChainNameLength must be at least %d, not %d", minLen, c.MaxChainNameLength)
		}
	}
	return nil
}

func (c *Config) DispatchConfig() rules.DispatchConfig {
	dc := rules.DefaultDispatchConfig(c.InterfacePrefix, c.IPVersion)
	dc.MaxChainNameLength = c.MaxChainNameLength
	dc.MaxLeafSuffixLength = c.MaxLeafSuffixLength
	return dc
}
