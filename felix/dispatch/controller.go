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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/projectcalico/felixdispatch/felix/config"
	"github.com/projectcalico/felixdispatch/felix/rules"
	"github.com/projectcalico/felixdispatch/lib/set"
)

var (
	// ErrStopped is returned for requests made after the controller's context was canceled.
	ErrStopped = errors.New("dispatch controller stopped")
	// ErrHalted is returned once the controller has hit an internal inconsistency that makes it
	// unsafe to program any more dispatch chains.
	ErrHalted = errors.New("dispatch controller halted")
)

// HaltedError wraps the error that caused the controller to halt.  It matches both ErrHalted
// and the cause with errors.Is/As.
type HaltedError struct {
	Cause error
}

func (e *HaltedError) Error() string {
	return ErrHalted.Error() + ": " + e.Cause.Error()
}

func (e *HaltedError) Unwrap() []error {
	return []error{ErrHalted, e.Cause}
}

type requestKind int

const (
	reqSnapshot requestKind = iota
	reqAdd
	reqRemove
)

func (k requestKind) String() string {
	switch k {
	case reqSnapshot:
		return "snapshot"
	case reqAdd:
		return "add"
	case reqRemove:
		return "remove"
	}
	return "unknown"
}

type request struct {
	kind   requestKind
	ifaces []string
	doneC  chan error
}

func (r request) finish(err error) {
	r.doneC <- err
	close(r.doneC)
}

// Controller owns the top-level dispatch chains, which send packets to and from each local
// workload interface to that workload's own chains.
//
// Requests are queued on a channel and handled one at a time, in order, by a single background
// goroutine, which owns all of the controller's state.  Each request recalculates the complete
// set of dispatch chains from the desired set of interfaces and, if that set differs from the
// one that was last programmed, makes exactly one call to the Applier.  The new generation only
// becomes the committed state if that call succeeds; a failure is returned to the caller and
// the next request is calculated against the last committed generation.
type Controller struct {
	ipVersion uint8
	renderer  *rules.DispatchRenderer
	applier   Applier
	onCommit  func(*State)

	requestC chan request

	// lifecycleLock guards stopped.  Senders hold the read lock while queueing so that, once
	// the loop has taken the write lock, no new requests can arrive.
	lifecycleLock sync.RWMutex
	stopped       bool

	ready atomic.Bool

	// Owned by the background goroutine.
	desired   set.Set[string]
	committed *State
	// initialised is false until the first generation has been applied.
	initialised bool
	haltErr     error
}

type Option func(*Controller)

// OptOnCommit registers a callback that is made from the controller's goroutine each time a
// new generation has been applied.  The State must not be modified.
func OptOnCommit(f func(*State)) Option {
	return func(c *Controller) {
		c.onCommit = f
	}
}

func NewController(cfg *config.Config, applier Applier, opts ...Option) *Controller {
	c := &Controller{
		ipVersion: cfg.IPVersion,
		renderer:  rules.NewDispatchRenderer(cfg.DispatchConfig()),
		applier:   applier,
		onCommit:  func(*State) {},
		requestC:  make(chan request, cfg.MailboxSize),
		desired:   set.New[string](),
		committed: NewState(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start starts the background goroutine.  Requests made before Start are queued (up to the
// mailbox size).  The returned channel is closed once the goroutine has exited after ctx is
// canceled.
func (c *Controller) Start(ctx context.Context) (done chan struct{}) {
	log.WithField("ipVersion", c.ipVersion).Info("Starting dispatch chain controller.")
	done = make(chan struct{})
	go c.loop(ctx, done)
	return
}

// Ready returns true once the first generation of dispatch chains has been applied.
func (c *Controller) Ready() bool {
	return c.ready.Load()
}

// ApplySnapshot replaces the complete set of local interfaces.  The returned channel receives
// the result once the request has been handled.
func (c *Controller) ApplySnapshot(ifaces []string) <-chan error {
	return c.submit(reqSnapshot, append([]string(nil), ifaces...))
}

func (c *Controller) OnEndpointAdded(iface string) <-chan error {
	return c.submit(reqAdd, []string{iface})
}

func (c *Controller) OnEndpointRemoved(iface string) <-chan error {
	return c.submit(reqRemove, []string{iface})
}

func (c *Controller) submit(kind requestKind, ifaces []string) <-chan error {
	req := request{kind: kind, ifaces: ifaces, doneC: make(chan error, 1)}
	c.lifecycleLock.RLock()
	defer c.lifecycleLock.RUnlock()
	if c.stopped {
		req.finish(ErrStopped)
		return req.doneC
	}
	c.requestC <- req
	return req.doneC
}

func (c *Controller) loop(ctx context.Context, doneC chan struct{}) {
	defer close(doneC)
	for {
		select {
		case <-ctx.Done():
			log.Info("Dispatch chain controller stopping, context canceled.")
			c.shutDown()
			return
		case req := <-c.requestC:
			req.finish(c.handleRequest(req))
		}
	}
}

// shutDown fails any queued requests.  Senders may be blocked on a full mailbox while holding
// the read lock so we keep draining until we get the write lock.
func (c *Controller) shutDown() {
	drainDone := make(chan struct{})
	drainStopped := make(chan struct{})
	go func() {
		defer close(drainStopped)
		for {
			select {
			case req := <-c.requestC:
				req.finish(ErrStopped)
			case <-drainDone:
				return
			}
		}
	}()
	c.lifecycleLock.Lock()
	c.stopped = true
	c.lifecycleLock.Unlock()
	close(drainDone)
	<-drainStopped

	for {
		select {
		case req := <-c.requestC:
			req.finish(ErrStopped)
		default:
			return
		}
	}
}

func (c *Controller) handleRequest(req request) error {
	logCxt := log.WithFields(log.Fields{
		"kind":   req.kind,
		"ifaces": req.ifaces,
	})
	logCxt.Debug("Handling dispatch request.")
	if c.haltErr != nil {
		logCxt.Warn("Ignoring request, dispatch controller is halted.")
		return c.haltErr
	}

	switch req.kind {
	case reqSnapshot:
		c.desired = set.FromArray(req.ifaces)
	case reqAdd:
		c.desired.Add(req.ifaces[0])
	case reqRemove:
		c.desired.Discard(req.ifaces[0])
	}

	if c.initialised && c.desired.Equals(c.committed.Interfaces) {
		logCxt.Debug("Interfaces unchanged, nothing to do.")
		countNoOpMessages.Inc()
		return nil
	}

	startTime := time.Now()
	chains, err := c.renderer.DispatchChains(c.desired)
	if err != nil {
		var collision *rules.LeafNameCollisionError
		if errors.As(err, &collision) {
			c.haltErr = &HaltedError{Cause: err}
			logCxt.WithError(err).Error("Leaf chain name collision; refusing to program any more dispatch chains.")
			return c.haltErr
		}
		return errors.Wrap(err, "failed to calculate dispatch chains")
	}
	next := newStateFromChains(c.desired, chains)
	update := CalculateUpdate(c.committed, next, c.ipVersion)
	summaryCalcTime.Observe(time.Since(startTime).Seconds())

	if err := c.applier.Apply(update); err != nil {
		countUpdateFailures.Inc()
		logCxt.WithError(err).Warn("Failed to apply dispatch chains; keeping previous state.")
		return errors.Wrap(err, "failed to apply dispatch chains")
	}

	c.committed = next
	c.initialised = true
	c.ready.Store(true)
	countUpdatesApplied.Inc()
	gaugeInterfaces.Set(float64(next.Interfaces.Len()))
	gaugePrefixChains.Set(float64(next.numPrefixChains()))
	logCxt.WithFields(log.Fields{
		"numIfaces": next.Interfaces.Len(),
		"numChains": next.ChainNames().Len(),
		"toDelete":  update.ToDelete,
	}).Info("Applied dispatch chains.")
	c.onCommit(next)
	return nil
}
