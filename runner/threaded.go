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

// Threaded is the goroutine-per-observer Runner flavour: every submitted
// observer gets its own feeder goroutine ticking at tick, the most direct
// translation of moler's thread-per-observer runner.
type Threaded struct {
	mu      sync.Mutex
	state   State
	tick    time.Duration
	entries map[observer.Lifecycle]*entry
	wg      sync.WaitGroup
	log     *zap.Logger
}

// ThreadedOption configures a Threaded runner at construction time.
type ThreadedOption func(*Threaded)

// WithThreadedTick overrides DefaultTick.
func WithThreadedTick(d time.Duration) ThreadedOption {
	return func(r *Threaded) { r.tick = d }
}

// WithThreadedLogger overrides the default no-op logger.
func WithThreadedLogger(log *zap.Logger) ThreadedOption {
	return func(r *Threaded) { r.log = log }
}

// NewThreaded constructs a Threaded runner in the Fresh state.
func NewThreaded(opts ...ThreadedOption) *Threaded {
	r := &Threaded{
		state:   Fresh,
		tick:    DefaultTick,
		entries: make(map[observer.Lifecycle]*entry),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start transitions Fresh -> Running. ctx is accepted for symmetry with
// Cooperative and with transport-layer Start methods; Threaded itself has
// no top-level goroutine to bind it to, since every feeder is spawned at
// Submit time instead.
func (r *Threaded) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Fresh {
		return fmt.Errorf("%w: runner already started", errs.ErrWrongUsage)
	}
	r.state = Running
	return nil
}

// State reports the runner's own lifecycle state.
func (r *Threaded) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Threaded) accept(e *entry) error {
	r.mu.Lock()
	if r.state != Running {
		r.mu.Unlock()
		return fmt.Errorf("%w: runner is not running", errs.ErrRunnerClosed)
	}
	r.entries[e.obs] = e
	r.mu.Unlock()

	r.wg.Add(1)
	go r.feed(e)
	return nil
}

func (r *Threaded) feed(e *entry) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			r.finish(e)
			return
		case <-ticker.C:
			if e.obs.Done() {
				r.finish(e)
				return
			}

			start := e.obs.StartTime()
			timeout := e.obs.Timeout()
			if timeout > 0 && !start.IsZero() && time.Since(start) >= timeout {
				e.obs.FireTimeout(fmt.Errorf("%w: %s exceeded %s", errs.ErrTimeout, e.obs.Name(), timeout))
				r.finish(e)
				return
			}
		}
	}
}

func (r *Threaded) finish(e *entry) {
	e.unsubscribe()

	r.mu.Lock()
	delete(r.entries, e.obs)
	r.mu.Unlock()

	e.future.resolve(e.obs.Cancelled())
}

func (r *Threaded) lookup(o observer.Observer) *entry {
	lc, ok := o.(observer.Lifecycle)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[lc]
}

// WaitFor blocks until o reaches a terminal state or timeout elapses. An
// observer that already finished (its entry was removed from the live map
// the moment it resolved) is reported as done rather than WrongUsage - only
// an observer never submitted to this runner is a usage error.
func (r *Threaded) WaitFor(o observer.Observer, timeout *time.Duration) error {
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
// state. For an observer whose entry has already been removed because it
// finished, that channel is simply returned pre-closed.
func (r *Threaded) WaitForIterator(o observer.Observer) (<-chan struct{}, error) {
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

// Shutdown cancels every live observer, stops every feeder, and waits for
// them to exit. Safe to call more than once.
func (r *Threaded) Shutdown() {
	r.mu.Lock()
	if r.state == Down || r.state == ShuttingDown {
		r.mu.Unlock()
		return
	}
	r.state = ShuttingDown

	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.obs.Cancel()
		close(e.stop)
	}

	r.wg.Wait()

	r.mu.Lock()
	r.state = Down
	r.mu.Unlock()
}
