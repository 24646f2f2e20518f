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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	countUpdatesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "felix_dispatch_updates_applied",
		Help: "Number of dispatch chain generations successfully applied.",
	})
	countUpdateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "felix_dispatch_update_failures",
		Help: "Number of dispatch chain generations that failed to apply.",
	})
	countNoOpMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "felix_dispatch_noop_messages",
		Help: "Number of messages that left the set of interfaces unchanged.",
	})
	gaugeInterfaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "felix_dispatch_interfaces",
		Help: "Number of interfaces in the programmed dispatch chains.",
	})
	gaugePrefixChains = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "felix_dispatch_prefix_chains",
		Help: "Number of programmed dispatch prefix chains, both directions.",
	})
	summaryCalcTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "felix_dispatch_calc_time_seconds",
		Help: "Time taken to calculate a dispatch chain update.",
	})
)

func init() {
	prometheus.MustRegister(
		countUpdatesApplied,
		countUpdateFailures,
		countNoOpMessages,
		gaugeInterfaces,
		gaugePrefixChains,
		summaryCalcTime,
	)
}
