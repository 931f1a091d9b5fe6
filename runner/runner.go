// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package runner implements the scheduler that couples observers to an
// ObservableConnection (spec §4.D): subscribing each submitted observer's
// data path, watching its timeout, and resolving a Future once it reaches a
// terminal state. Two concrete flavours are provided - Threaded (one
// goroutine per observer) and Cooperative (one dispatcher goroutine
// multiplexing every observer submitted to it) - behind the single Runner
// interface.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/connobserve/observer"
)

// State is the runner's own lifecycle, independent of any observer's:
// Fresh -> Running -> ShuttingDown -> Down. Down is terminal.
type State int

const (
	Fresh State = iota
	Running
	ShuttingDown
	Down
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// DefaultTick is the interval both runner flavours re-check every live
// observer's timeout at, absent an explicit WithThreadedTick or
// WithCooperativeTick option.
const DefaultTick = 10 * time.Millisecond

// Runner is the scheduler contract both flavours satisfy. Submit is a
// package-level generic function rather than a method (Go methods cannot
// carry their own type parameters), so it is not part of this interface.
type Runner interface {
	// Start transitions Fresh -> Running. Submit refuses observers until
	// this has been called.
	Start(ctx context.Context) error

	// WaitFor blocks until o reaches a terminal state, or timeout elapses
	// if non-nil, or the calling context is understood to be unsafe to
	// block in (Cooperative's own dispatcher goroutine).
	WaitFor(o observer.Observer, timeout *time.Duration) error

	// WaitForIterator returns a channel that closes once o reaches a
	// terminal state - the non-blocking counterpart to WaitFor, safe to
	// select on from any goroutine including a Cooperative runner's own
	// dispatcher.
	WaitForIterator(o observer.Observer) (<-chan struct{}, error)

	// Shutdown cancels every still-running observer, stops every feeder,
	// and transitions to Down. Safe to call more than once.
	Shutdown()

	// State reports the runner's own lifecycle state.
	State() State
}

// acceptor is the unexported half of Runner that the generic Submit
// function drives; it is deliberately not part of the public Runner
// interface so external packages cannot bypass Submit's bookkeeping.
type acceptor interface {
	accept(e *entry) error
}

// entry is one submitted observer's bookkeeping, shared by both runner
// flavours.
type entry struct {
	obs         observer.Lifecycle
	future      *Future
	unsubscribe func()
	stop        chan struct{}
}

// Future is the handle Submit returns: a minimal promise over an
// observer's completion, deliberately narrower than the observer's own
// Result - it only ever reports whether the wait itself was cancelled, per
// spec §4.D ("exception() always none ... fails with CancellationError
// only if the future was itself cancelled").
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	closed    bool
	cancelled bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(cancelled bool) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.cancelled = cancelled
	f.mu.Unlock()
	close(f.done)
}

// Done reports whether the observer this future tracks has reached a
// terminal state.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancelled reports whether the observer was cancelled (directly, or by a
// runner Shutdown) rather than completing or timing out.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Result blocks until the future resolves, returning errs.ErrCancelled if
// it was cancelled and nil otherwise. It never surfaces the observer's own
// stored exception - call the observer's Result for that.
func (f *Future) Result() error {
	<-f.done
	if f.Cancelled() {
		return errs.ErrCancelled
	}
	return nil
}

// Exception always returns nil: this future type carries no exception of
// its own distinct from cancellation.
func (f *Future) Exception() error { return nil }

// Submit registers o with conn and hands it to r for scheduling. S is the
// concrete observer struct and P its pointer type, inferred from o - the
// same two-type-parameter shape connection.Subscribe uses, and for the same
// reason: it is what lets the weak subscription underneath track o's real
// identity instead of a copy.
//
// o must already be Armed (see observer.Base.Arm) or Submit fails with
// errs.ErrWrongUsage; r must have had Start called or Submit fails with
// errs.ErrRunnerClosed.
func Submit[S any, P interface {
	*S
	observer.Lifecycle
}](r Runner, conn *connection.ObservableConnection, o P) (*Future, error) {
	acc, ok := r.(acceptor)
	if !ok {
		return nil, fmt.Errorf("%w: runner does not implement Submit", errs.ErrWrongUsage)
	}

	if o.State() != observer.Armed {
		return nil, fmt.Errorf("%w: observer must be armed before Submit", errs.ErrWrongUsage)
	}

	future := newFuture()
	e := &entry{obs: o, future: future, stop: make(chan struct{})}
	e.unsubscribe = func() { connection.Unsubscribe[S, P](conn, o) }

	connection.Subscribe[S, P](conn, o, func() {
		// The connection shut down out from under a still-running
		// observer: treat it the same as an explicit cancel.
		o.Cancel()
	})

	o.SetRunner(r)
	o.MarkRunning()

	if err := acc.accept(e); err != nil {
		e.unsubscribe()
		return nil, err
	}

	return future, nil
}
