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

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/docopt/docopt-go"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/projectcalico/felixdispatch/felix/config"
	"github.com/projectcalico/felixdispatch/felix/dispatch"
	"github.com/projectcalico/felixdispatch/felix/iptables"
	"github.com/projectcalico/felixdispatch/lib/logutils"
	"github.com/projectcalico/felixdispatch/lib/set"
)

const version = "v0.1.0"

const usage = `Felix workload dispatch chain calculator.

Usage:
  calc-dispatch [options] [<iface>...]
  calc-dispatch --version

Description:
  Calculates the top-level dispatch chains that send traffic to and from each of the given
  workload interfaces to that workload's own chains, and prints them as an iptables-restore
  transaction.  Nothing is programmed into the kernel.

  Defaults are read from FELIX_* environment variables, for example FELIX_INTERFACE_PREFIX.

Options:
  --iface-prefix=<prefix>   Prefix of workload interface names.
  --ip-version=<version>    IP version of the chains, 4 or 6.
  --all-families            Calculate both the IPv4 and the IPv6 chains.
  --summary                 Print a table of chains instead of the transaction.
  -d --debug                Log debugging information to stderr.
  --version                 Print the version and exit.
`

func main() {
	arguments, err := docopt.Parse(usage, nil, true, version, false)
	if err != nil {
		log.Fatalf("Failed to parse command line arguments: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration.")
	}
	logutils.ConfigureFormatter("calc-dispatch")
	logutils.ConfigureLogging(cfg.LogLevel)
	if arguments["--debug"].(bool) {
		log.SetLevel(log.DebugLevel)
	}

	if prefix, ok := arguments["--iface-prefix"].(string); ok {
		cfg.InterfacePrefix = prefix
	}
	if v, ok := arguments["--ip-version"].(string); ok {
		ipVersion, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			log.WithError(err).Fatal("Invalid --ip-version.")
		}
		cfg.IPVersion = uint8(ipVersion)
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration.")
	}
	log.WithField("config", *cfg).Info("Loaded configuration.")

	ifaces, _ := arguments["<iface>"].([]string)
	summary := arguments["--summary"].(bool)

	ipVersions := []uint8{cfg.IPVersion}
	if arguments["--all-families"].(bool) {
		ipVersions = []uint8{4, 6}
	}

	outputs, err := calculateFamilies(cfg, ipVersions, ifaces, summary)
	if err != nil {
		log.WithError(err).Fatal("Failed to calculate dispatch chains.")
	}
	for _, out := range outputs {
		if _, err := out.WriteTo(os.Stdout); err != nil {
			log.WithError(err).Fatal("Failed to write output.")
		}
	}
}

// calculateFamilies runs one controller per IP version, concurrently.  Output is buffered per
// family and returned in the order of ipVersions.
func calculateFamilies(cfg *config.Config, ipVersions []uint8, ifaces []string, summary bool) ([]*bytes.Buffer, error) {
	outputs := make([]*bytes.Buffer, len(ipVersions))
	g, ctx := errgroup.WithContext(context.Background())
	for i, ipVersion := range ipVersions {
		familyCfg := *cfg
		familyCfg.IPVersion = ipVersion
		out := &bytes.Buffer{}
		outputs[i] = out
		g.Go(func() error {
			return calculate(ctx, &familyCfg, ifaces, newApplier(out, summary))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func newApplier(out io.Writer, summary bool) dispatch.Applier {
	if summary {
		return dispatch.ApplierFunc(func(u *dispatch.Update) error {
			return printSummary(out, u)
		})
	}
	w := iptables.NewRestoreWriter(out, "filter")
	return dispatch.ApplierFunc(func(u *dispatch.Update) error {
		return w.Write(u.AllUpdates(), u.AllDeps(), u.ToDelete, u.NewLeafChains)
	})
}

// calculate runs a controller for one snapshot of interfaces and waits for it to exit.
func calculate(ctx context.Context, cfg *config.Config, ifaces []string, applier dispatch.Applier) error {
	ctx, cancel := context.WithCancel(ctx)
	controller := dispatch.NewController(cfg, applier)
	done := controller.Start(ctx)
	err := <-controller.ApplySnapshot(ifaces)
	cancel()
	<-done
	if err != nil {
		return errors.Wrapf(err, "IPv%d", cfg.IPVersion)
	}
	return nil
}

func printSummary(out io.Writer, u *dispatch.Update) error {
	all := u.AllUpdates()
	deps := u.AllDeps()
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Chain", "Rules", "References"})
	for _, name := range iptables.DependencyOrder(all, deps) {
		refs := set.Empty[string]()
		if d, ok := deps[name]; ok {
			refs = d
		}
		table.Append([]string{name, strconv.Itoa(len(all[name])), strconv.Itoa(refs.Len())})
	}
	table.Render()
	_, err := fmt.Fprintf(out, "IPv%d: %d chains, %d workload chains referenced.\n",
		u.IPVersion, len(all), u.NewLeafChains.Len())
	return err
}
