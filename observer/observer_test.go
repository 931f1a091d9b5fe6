// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package observer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/connobserve/diagnostics"
	"github.com/xmidt-org/connobserve/errs"
)

// probe is the minimal concrete observer used across this package's tests:
// it counts OnTimeout calls and lets a test drive DataReceived directly.
type probe struct {
	*Base
	timeoutCalls int
}

func newProbe(timeout time.Duration) *probe {
	p := &probe{Base: New("probe", timeout)}
	p.Init(p)
	return p
}

func (p *probe) DataReceived(text string) {}

func (p *probe) OnTimeout() {
	p.timeoutCalls++
}

func TestArmTransitionsNewToArmed(t *testing.T) {
	p := newProbe(time.Second)
	assert.Equal(t, New, p.State())

	p.Arm(time.Now())
	assert.Equal(t, Armed, p.State())
}

func TestMarkRunningOnlyFromArmed(t *testing.T) {
	p := newProbe(time.Second)
	p.MarkRunning()
	assert.Equal(t, New, p.State(), "MarkRunning before Arm is a no-op")

	p.Arm(time.Now())
	p.MarkRunning()
	assert.Equal(t, Running, p.State())
}

func TestSetResultFirstWriteWins(t *testing.T) {
	p := newProbe(time.Second)
	p.Arm(time.Now())
	p.MarkRunning()

	assert.True(t, p.SetResult("first"))
	assert.False(t, p.SetResult("second"))
	assert.False(t, p.SetException(errors.New("ignored")))

	v, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.True(t, p.Done())
}

func TestSetExceptionRecordsUnraisedUntilRead(t *testing.T) {
	p := newProbe(time.Second)
	boom := errors.New("boom")
	p.SetException(boom)

	unread := diagnostics.DrainUnraised()
	require.Len(t, unread, 1)
	assert.Equal(t, boom, unread[0].Err)

	// Re-record since DrainUnraised above removed it; Result() should
	// then mark it read in turn.
	diagnostics.RecordUnraised(p.Base, p.Name(), boom, time.Now())
	_, err := p.Result()
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, diagnostics.DrainUnraised())
}

func TestResultNotReadyBeforeTerminal(t *testing.T) {
	p := newProbe(time.Second)
	_, err := p.Result()
	assert.ErrorIs(t, err, errs.ErrResultNotReady)
}

func TestFireTimeoutCallsOnTimeoutExactlyOnce(t *testing.T) {
	p := newProbe(time.Millisecond)
	p.Arm(time.Now())
	p.MarkRunning()

	p.FireTimeout(errs.ErrTimeout)
	p.FireTimeout(errs.ErrTimeout)
	p.FireTimeout(errs.ErrTimeout)

	assert.Equal(t, 1, p.timeoutCalls)
	assert.Equal(t, TimedOut, p.State())

	_, err := p.Result()
	assert.ErrorIs(t, err, errs.ErrTimeout)
}

func TestCancelIsTerminalAndBlocksLaterWrites(t *testing.T) {
	p := newProbe(time.Second)
	assert.True(t, p.Cancel())
	assert.True(t, p.Cancelled())
	assert.False(t, p.SetResult("too late"))

	_, err := p.Result()
	assert.ErrorIs(t, err, errs.ErrCancelled)
}

func TestSetTimeoutIsReReadDynamically(t *testing.T) {
	p := newProbe(time.Second)
	assert.Equal(t, time.Second, p.Timeout())

	p.SetTimeout(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, p.Timeout())
}

type stubRunner struct {
	waitErr error
	called  bool
}

func (s *stubRunner) WaitFor(o Observer, timeout *time.Duration) error {
	s.called = true
	return s.waitErr
}

func TestAwaitDoneRequiresSubmission(t *testing.T) {
	p := newProbe(time.Second)
	err := p.AwaitDone(nil)
	assert.ErrorIs(t, err, errs.ErrWrongUsage)
}

func TestAwaitDoneDelegatesToBoundRunner(t *testing.T) {
	p := newProbe(time.Second)
	r := &stubRunner{}
	p.SetRunner(r)

	require.NoError(t, p.AwaitDone(nil))
	assert.True(t, r.called)
}
