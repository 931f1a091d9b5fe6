// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/connobserve/observer"
	"go.uber.org/zap"
)

// Cooperative is the single-dispatcher-goroutine Runner flavour: every
// submitted observer is watched by one shared goroutine instead of one
// goroutine each, modelling the single-threaded event loop moler's asyncio
// runner cooperates with. WaitFor called from inside that one goroutine -
// e.g. from a callback an observer runs synchronously off the dispatcher's
// own tick - would deadlock it, so it is refused (best-effort detected, see
// goroutineID) with errs.ErrWrongUsage; use WaitForIterator there instead.
type Cooperative struct {
	mu      sync.Mutex
	state   State
	tick    time.Duration
	entries map[observer.Lifecycle]*entry
	log     *zap.Logger

	addCh      chan *entry
	shutdownCh chan struct{}
	stoppedCh  chan struct{}

	dispatcherGoroutine uint64
}

// CooperativeOption configures a Cooperative runner at construction time.
type CooperativeOption func(*Cooperative)

// WithCooperativeTick overrides DefaultTick.
func WithCooperativeTick(d time.Duration) CooperativeOption {
	return func(r *Cooperative) { r.tick = d }
}

// WithCooperativeLogger overrides the default no-op logger.
func WithCooperativeLogger(log *zap.Logger) CooperativeOption {
	return func(r *Cooperative) { r.log = log }
}

// NewCooperative constructs a Cooperative runner in the Fresh state. Its
// dispatcher goroutine does not start until Start is called.
func NewCooperative(opts ...CooperativeOption) *Cooperative {
	r := &Cooperative{
		state:      Fresh,
		tick:       DefaultTick,
		entries:    make(map[observer.Lifecycle]*entry),
		log:        zap.NewNop(),
		addCh:      make(chan *entry),
		shutdownCh: make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start transitions Fresh -> Running and spins up the dispatcher goroutine.
// ctx's cancellation is equivalent to calling Shutdown.
func (r *Cooperative) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Fresh {
		r.mu.Unlock()
		return fmt.Errorf("%w: runner already started", errs.ErrWrongUsage)
	}
	r.state = Running
	r.mu.Unlock()

	go r.dispatch(ctx)
	return nil
}

// State reports the runner's own lifecycle state.
func (r *Cooperative) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Cooperative) dispatch(ctx context.Context) {
	r.dispatcherGoroutine = goroutineID()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	defer close(r.stoppedCh)

	for {
		select {
		case e := <-r.addCh:
			r.mu.Lock()
			r.entries[e.obs] = e
			r.mu.Unlock()

		case <-ctx.Done():
			r.drainAll()
			r.mu.Lock()
			r.state = Down
			r.mu.Unlock()
			return

		case <-r.shutdownCh:
			r.drainAll()
			return

		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep visits every live entry once: done observers are unsubscribed and
// resolved, timed-out ones fire their timeout hook first.
func (r *Cooperative) sweep() {
	r.mu.Lock()
	due := make([]*entry, 0)
	timedOut := make([]*entry, 0)
	for o, e := range r.entries {
		if o.Done() {
			due = append(due, e)
			continue
		}

		start := o.StartTime()
		timeout := o.Timeout()
		if timeout > 0 && !start.IsZero() && time.Since(start) >= timeout {
			timedOut = append(timedOut, e)
		}
	}
	r.mu.Unlock()

	for _, e := range timedOut {
		e.obs.FireTimeout(fmt.Errorf("%w: %s exceeded %s", errs.ErrTimeout, e.obs.Name(), e.obs.Timeout()))
		due = append(due, e)
	}

	if len(due) == 0 {
		return
	}

	r.mu.Lock()
	for _, e := range due {
		delete(r.entries, e.obs)
	}
	r.mu.Unlock()

	for _, e := range due {
		e.unsubscribe()
		e.future.resolve(e.obs.Cancelled())
	}
}

func (r *Cooperative) drainAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[observer.Lifecycle]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.obs.Cancel()
		e.unsubscribe()
		e.future.resolve(true)
	}
}

func (r *Cooperative) accept(e *entry) error {
	r.mu.Lock()
	st := r.state
	r.mu.Unlock()

	if st != Running {
		return fmt.Errorf("%w: runner is not running", errs.ErrRunnerClosed)
	}

	select {
	case r.addCh <- e:
		return nil
	case <-r.stoppedCh:
		return fmt.Errorf("%w: runner is not running", errs.ErrRunnerClosed)
	}
}

func (r *Cooperative) lookup(o observer.Observer) *entry {
	lc, ok := o.(observer.Lifecycle)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[lc]
}

// WaitFor blocks until o reaches a terminal state or timeout elapses. It
// fails with errs.ErrWrongUsage if called from the dispatcher's own
// goroutine. An observer that already finished (its entry was removed from
// the live map the moment it resolved) is reported as done rather than
// WrongUsage - only an observer never submitted to this runner is a usage
// error.
func (r *Cooperative) WaitFor(o observer.Observer, timeout *time.Duration) error {
	if goroutineID() == r.dispatcherGoroutine {
		return fmt.Errorf("%w: WaitFor called from inside the cooperative dispatcher; use WaitForIterator", errs.ErrWrongUsage)
	}

	e := r.lookup(o)
	if e == nil {
		if o.Done() {
			if o.Cancelled() {
				return errs.ErrCancelled
			}
			return nil
		}
		return fmt.Errorf("%w: observer was not submitted to this runner", errs.ErrWrongUsage)
	}

	if timeout == nil {
		return e.future.Result()
	}

	t := time.NewTimer(*timeout)
	defer t.Stop()

	select {
	case <-e.future.done:
		return e.future.Result()
	case <-t.C:
		e.obs.FireTimeout(fmt.Errorf("%w: wait_for deadline on %s", errs.ErrTimeout, e.obs.Name()))
		return errs.ErrTimeout
	}
}

// WaitForIterator returns a channel that closes once o reaches a terminal
// state - safe to select on from any goroutine, including the dispatcher's
// own. For an observer whose entry has already been removed because it
// finished, that channel is simply returned pre-closed.
func (r *Cooperative) WaitForIterator(o observer.Observer) (<-chan struct{}, error) {
	e := r.lookup(o)
	if e == nil {
		if o.Done() {
			ch := make(chan struct{})
			close(ch)
			return ch, nil
		}
		return nil, fmt.Errorf("%w: observer was not submitted to this runner", errs.ErrWrongUsage)
	}
	return e.future.done, nil
}

// Shutdown cancels every live observer and stops the dispatcher goroutine.
// Safe to call more than once.
func (r *Cooperative) Shutdown() {
	r.mu.Lock()
	if r.state == Down || r.state == ShuttingDown {
		r.mu.Unlock()
		return
	}
	r.state = ShuttingDown
	r.mu.Unlock()

	close(r.shutdownCh)
	<-r.stoppedCh

	r.mu.Lock()
	r.state = Down
	r.mu.Unlock()
}
