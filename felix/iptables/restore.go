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
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/projectcalico/felixdispatch/lib/set"
)

// RestoreWriter renders chain updates as a single iptables-restore transaction.  It doesn't
// execute anything; the output can be inspected or fed to "iptables-restore --noflush".
type RestoreWriter struct {
	out   io.Writer
	table string
}

func NewRestoreWriter(out io.Writer, table string) *RestoreWriter {
	if table == "" {
		table = "filter"
	}
	return &RestoreWriter{out: out, table: table}
}

// Write renders one transaction.  Chains are declared children-first according to deps so that
// a reader sees every chain before the chains that refer to it.  Chains in requiredChains are
// expected to be owned by someone else; they are noted but not declared, since declaring a chain
// flushes it.
func (w *RestoreWriter) Write(
	updates ChainUpdates,
	deps DependencyGraph,
	toDelete set.Set[string],
	requiredChains set.Set[string],
) error {
	if toDelete == nil {
		toDelete = set.Empty[string]()
	}
	buf := bufio.NewWriter(w.out)
	order := DependencyOrder(updates, deps)

	log.WithFields(log.Fields{
		"table":     w.table,
		"numChains": len(order),
		"numDelete": toDelete.Len(),
	}).Debug("Rendering iptables-restore transaction.")

	lines := []string{"*" + w.table}
	if requiredChains != nil {
		for _, name := range set.Sorted(requiredChains) {
			lines = append(lines, "# requires "+name)
		}
	}
	for _, name := range order {
		lines = append(lines, fmt.Sprintf(":%s - -", name))
	}
	for _, name := range order {
		lines = append(lines, updates[name]...)
	}
	for _, name := range set.Sorted(toDelete) {
		lines = append(lines, "--flush "+name)
	}
	for _, name := range set.Sorted(toDelete) {
		lines = append(lines, "--delete-chain "+name)
	}
	lines = append(lines, "COMMIT")

	for _, l := range lines {
		if _, err := buf.WriteString(l + "\n"); err != nil {
			return errors.Wrap(err, "failed to write iptables-restore input")
		}
	}
	return errors.Wrap(buf.Flush(), "failed to flush iptables-restore input")
}

// DependencyOrder returns the names of the chains in updates ordered so that each chain comes
// after all the chains (in updates) that it depends on.  Ties are broken by name.
func DependencyOrder(updates ChainUpdates, deps DependencyGraph) []string {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)

	visited := set.New[string]()
	var order []string
	var visit func(name string)
	visit = func(name string) {
		if visited.Contains(name) {
			return
		}
		visited.Add(name)
		if children, ok := deps[name]; ok {
			for _, child := range set.Sorted(children) {
				if _, ok := updates[child]; ok {
					visit(child)
				}
			}
		}
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}
