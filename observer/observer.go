// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package observer implements the abstract single-shot connection observer
// described in spec §4.C: a parser/state-machine that consumes decoded text
// fragments from a connection and produces a terminal result or exception.
package observer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/connobserve/diagnostics"
	"github.com/xmidt-org/connobserve/errs"
)

// State is one point in an observer's lifecycle (spec §3):
// New -> Armed -> Running -> (DoneOK | DoneFail | TimedOut | Cancelled).
// Every state past Running is terminal and sticky.
type State int

const (
	New State = iota
	Armed
	Running
	DoneOK
	DoneFail
	TimedOut
	Cancelled
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case DoneOK:
		return "done_ok"
	case DoneFail:
		return "done_fail"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == DoneOK || s == DoneFail || s == TimedOut || s == Cancelled
}

// Observer is the full contract a Runner needs from a submitted observer:
// the overridable data path (DataReceived, OnTimeout) plus the bookkeeping
// Base already implements. Concrete observers embed Base and add
// DataReceived (and optionally override OnTimeout); the rest is promoted.
type Observer interface {
	DataReceived(text string)
	OnTimeout()
	StartTime() time.Time
	Timeout() time.Duration
	Done() bool
	Cancelled() bool
	SetException(err error) bool
	Cancel() bool
	Name() string
}

// Runner is the minimal capability Base.AwaitDone needs from whatever
// scheduler the observer was submitted to. The runner package's Threaded
// and Cooperative types satisfy this structurally - observer never imports
// runner.
type Runner interface {
	WaitFor(o Observer, timeout *time.Duration) error
}

// Lifecycle is the wider surface runner.Submit needs: Observer plus the
// bookkeeping moves that only the scheduler, not a concrete observer's own
// code, should ever call. Base implements all of it; concrete observers
// never override any of these methods, so embedding Base is always enough
// to satisfy Lifecycle.
type Lifecycle interface {
	Observer

	State() State
	Arm(now time.Time)
	MarkRunning()
	SetRunner(r Runner)
	FireTimeout(err error)
}

// Base is the struct concrete observers embed. It is the Go stand-in for
// moler's ConnectionObserver base class: single-shot, first-result-wins,
// with a dynamically re-readable timeout.
type Base struct {
	mu sync.Mutex

	self Observer
	name string

	state State

	startTimeNS atomic.Int64
	timeoutNS   atomic.Int64

	result any
	err    error

	done            atomic.Bool
	cancelled       atomic.Bool
	onTimeoutCalled atomic.Bool

	runner Runner
}

// New constructs a Base with the given default timeout. name identifies the
// observer in logs and in the unraised-exception registry; it need not be
// unique.
func New(name string, timeout time.Duration) *Base {
	b := &Base{name: name, state: New}
	b.timeoutNS.Store(int64(timeout))
	return b
}

// Init binds the concrete observer embedding this Base. Concrete
// constructors must call it with themselves, e.g.:
//
//	d := &NetworkDownDetector{Base: observer.New("network-down", 5*time.Second)}
//	d.Init(d)
//
// Without it, AwaitDone fails with errs.ErrWrongUsage and FireTimeout
// cannot dispatch back into a concrete OnTimeout override - Go has no
// implicit self the way moler's Python base class does.
func (b *Base) Init(self Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
}

// Name returns the observer's diagnostic name.
func (b *Base) Name() string { return b.name }

// Arm assigns start_time and transitions New -> Armed. Submitting an
// observer whose start time was never assigned is a WrongUsage error (spec
// §4.D, "observer.start_time > 0").
func (b *Base) Arm(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.startTimeNS.Store(now.UnixNano())
	if b.state == New {
		b.state = Armed
	}
}

// StartTime returns the time Arm was called, or the zero time if it never
// was.
func (b *Base) StartTime() time.Time {
	ns := b.startTimeNS.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Timeout returns the current timeout. It is re-read on every tick by the
// runner's feeder rather than captured once at submit time (spec §9,
// "Mutable timeout field").
func (b *Base) Timeout() time.Duration {
	return time.Duration(b.timeoutNS.Load())
}

// SetTimeout changes the timeout. It may be called at any point in the
// observer's life, including while RUNNING; the feeder re-reads it every
// tick, so both widening and shortening take effect on the next tick.
func (b *Base) SetTimeout(d time.Duration) {
	b.timeoutNS.Store(int64(d))
}

// MarkRunning transitions Armed -> Running. Called by the runner on
// Submit.
func (b *Base) MarkRunning() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Armed {
		b.state = Running
	}
}

// State returns the observer's current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Done reports whether the observer has reached any terminal state.
func (b *Base) Done() bool {
	return b.done.Load()
}

// Cancelled reports whether the observer's terminal state is Cancelled.
func (b *Base) Cancelled() bool {
	return b.cancelled.Load()
}

// SetResult stores v as the observer's successful result. Only the first
// call among SetResult/SetException/Cancel wins; later calls are silent
// no-ops, per spec's first-wins rule.
func (b *Base) SetResult(v any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.terminal() {
		return false
	}

	b.result = v
	b.state = DoneOK
	b.done.Store(true)
	return true
}

// SetException stores err as the observer's failure. Only the first call
// among SetResult/SetException/Cancel wins. The exception is also recorded
// in diagnostics.RecordUnraised until a caller reads it back out via
// Result.
func (b *Base) SetException(err error) bool {
	b.mu.Lock()
	if b.state.terminal() {
		b.mu.Unlock()
		return false
	}

	b.err = err
	b.state = DoneFail
	b.mu.Unlock()

	b.done.Store(true)
	diagnostics.RecordUnraised(b, b.name, err, time.Now())
	return true
}

// setTimedOut is the runner-only transition into TimedOut: it stores a
// timeout error the same way SetException would, but also marks the
// terminal state distinctly so callers can tell "failed to parse" apart
// from "ran out of time".
func (b *Base) setTimedOut(err error) bool {
	b.mu.Lock()
	if b.state.terminal() {
		b.mu.Unlock()
		return false
	}

	b.err = err
	b.state = TimedOut
	b.mu.Unlock()

	b.done.Store(true)
	diagnostics.RecordUnraised(b, b.name, err, time.Now())
	return true
}

// SetTimedOut is exported for the runner package's feeder; it is not part
// of the Observer interface concrete types call directly.
func (b *Base) SetTimedOut(err error) bool { return b.setTimedOut(err) }

// FireTimeout transitions the observer to TimedOut and invokes its
// OnTimeout hook exactly once. A runner's feeder calls this instead of
// driving setTimedOut and OnTimeout separately, so the "on_timeout called
// at most once" guarantee (spec §4.D) holds even if more than one feeder
// tick were ever able to race here. An observer that is already in a
// terminal state is left as it is, and its OnTimeout is not called.
func (b *Base) FireTimeout(err error) {
	if !b.onTimeoutCalled.CompareAndSwap(false, true) {
		return
	}

	if !b.setTimedOut(err) {
		return
	}

	b.mu.Lock()
	self := b.self
	b.mu.Unlock()

	if self != nil {
		self.OnTimeout()
	} else {
		b.OnTimeout()
	}
}

// Cancel transitions the observer to Cancelled. Only the first call among
// SetResult/SetException/Cancel wins.
func (b *Base) Cancel() bool {
	b.mu.Lock()
	if b.state.terminal() {
		b.mu.Unlock()
		return false
	}

	b.state = Cancelled
	b.mu.Unlock()

	b.done.Store(true)
	b.cancelled.Store(true)
	return true
}

// Result returns the stored value, re-raising a stored exception, or
// failing with errs.ErrResultNotReady if the observer is not yet done.
func (b *Base) Result() (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case DoneOK:
		return b.result, nil
	case DoneFail, TimedOut:
		diagnostics.MarkRead(b)
		return nil, b.err
	case Cancelled:
		return nil, errs.ErrCancelled
	default:
		return nil, errs.ErrResultNotReady
	}
}

// OnTimeout is the default, empty timeout hook. Concrete observers override
// it by defining their own OnTimeout method, which Go's method promotion
// resolves in preference to this one when called through the Observer
// interface.
func (b *Base) OnTimeout() {}

// SetRunner binds the Runner this observer was submitted to, so AwaitDone
// can delegate to it. Called by runner.Submit.
func (b *Base) SetRunner(r Runner) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runner = r
}

// AwaitDone synchronously blocks until the observer reaches a terminal
// state, delegating to the bound Runner's WaitFor. It fails with
// errs.ErrWrongUsage if the observer was never submitted, or if the bound
// runner itself refuses the call (e.g. a Cooperative runner detecting it is
// being invoked from its own dispatcher goroutine).
func (b *Base) AwaitDone(timeout *time.Duration) error {
	b.mu.Lock()
	r := b.runner
	self := b.self
	b.mu.Unlock()

	if r == nil || self == nil {
		return fmt.Errorf("%w: AwaitDone called before the observer was submitted", errs.ErrWrongUsage)
	}

	return r.WaitFor(self, timeout)
}
