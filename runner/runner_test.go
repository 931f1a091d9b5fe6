// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/connobserve/observer"
)

// echoObserver resolves as soon as it sees the text "done", and otherwise
// leaves OnTimeout as the no-op default unless a test overrides onTimeout.
type echoObserver struct {
	*observer.Base
	onTimeout func()
}

func newEchoObserver(timeout time.Duration) *echoObserver {
	o := &echoObserver{Base: observer.New("echo", timeout)}
	o.Init(o)
	return o
}

func (o *echoObserver) DataReceived(text string) {
	if text == "done" {
		o.SetResult(text)
	}
}

func (o *echoObserver) OnTimeout() {
	if o.onTimeout != nil {
		o.onTimeout()
	}
}

func newTestConn() *connection.ObservableConnection {
	return connection.New("t", func([]byte) error { return nil })
}

func armed(o *echoObserver) *echoObserver {
	o.Arm(time.Now())
	return o
}

func runnerPairs(t *testing.T) map[string]Runner {
	threaded := NewThreaded(WithThreadedTick(2 * time.Millisecond))
	cooperative := NewCooperative(WithCooperativeTick(2 * time.Millisecond))
	require.NoError(t, threaded.Start(context.Background()))
	require.NoError(t, cooperative.Start(context.Background()))
	return map[string]Runner{"threaded": threaded, "cooperative": cooperative}
}

func TestSubmitRequiresArmedObserver(t *testing.T) {
	for name, r := range runnerPairs(t) {
		t.Run(name, func(t *testing.T) {
			conn := newTestConn()
			o := newEchoObserver(time.Second)
			_, err := Submit[echoObserver](r, conn, o)
			assert.ErrorIs(t, err, errs.ErrWrongUsage)
		})
	}
}

func TestSubmitThenDataResolvesObserverAndFuture(t *testing.T) {
	for name, r := range runnerPairs(t) {
		t.Run(name, func(t *testing.T) {
			conn := newTestConn()
			o := armed(newEchoObserver(time.Second))

			future, err := Submit[echoObserver](r, conn, o)
			require.NoError(t, err)

			conn.DataReceived([]byte("done"))

			require.NoError(t, r.WaitFor(o, nil))
			assert.False(t, future.Cancelled())

			v, err := o.Result()
			require.NoError(t, err)
			assert.Equal(t, "done", v)
		})
	}
}

func TestWaitForAfterObserverAlreadyFinishedStillSucceeds(t *testing.T) {
	for name, r := range runnerPairs(t) {
		t.Run(name, func(t *testing.T) {
			conn := newTestConn()
			o := armed(newEchoObserver(time.Second))

			_, err := Submit[echoObserver](r, conn, o)
			require.NoError(t, err)

			conn.DataReceived([]byte("done"))

			// Give the feeder/dispatcher time to notice completion and
			// drop the entry from its live map before WaitFor is called.
			time.Sleep(20 * time.Millisecond)

			assert.NoError(t, r.WaitFor(o, nil))
		})
	}
}

func TestTimeoutFiresOnTimeoutExactlyOnceAndFutureIsNotCancelled(t *testing.T) {
	for name, r := range runnerPairs(t) {
		t.Run(name, func(t *testing.T) {
			conn := newTestConn()
			o := armed(newEchoObserver(5 * time.Millisecond))

			var calls int
			o.onTimeout = func() { calls++ }

			future, err := Submit[echoObserver](r, conn, o)
			require.NoError(t, err)

			require.NoError(t, future.Result())
			assert.False(t, future.Cancelled())
			assert.Equal(t, observer.TimedOut, o.State())
			assert.Equal(t, 1, calls)
		})
	}
}

func TestShutdownCancelsLiveObservers(t *testing.T) {
	for name, r := range runnerPairs(t) {
		t.Run(name, func(t *testing.T) {
			conn := newTestConn()
			o := armed(newEchoObserver(time.Hour))

			future, err := Submit[echoObserver](r, conn, o)
			require.NoError(t, err)

			r.Shutdown()

			assert.ErrorIs(t, future.Result(), errs.ErrCancelled)
			assert.True(t, o.Cancelled())
			assert.Equal(t, Down, r.State())
		})
	}
}

func TestDataAfterDoneIsANoOp(t *testing.T) {
	for name, r := range runnerPairs(t) {
		t.Run(name, func(t *testing.T) {
			conn := newTestConn()
			o := armed(newEchoObserver(time.Second))

			_, err := Submit[echoObserver](r, conn, o)
			require.NoError(t, err)

			conn.DataReceived([]byte("done"))
			require.NoError(t, r.WaitFor(o, nil))

			// A subscriber already collected by Shutdown/finish should not
			// panic or re-resolve on further inbound data.
			conn.DataReceived([]byte("done"))
		})
	}
}

func TestCooperativeRefusesWaitForFromItsOwnDispatcher(t *testing.T) {
	r := NewCooperative(WithCooperativeTick(2 * time.Millisecond))
	require.NoError(t, r.Start(context.Background()))
	defer r.Shutdown()

	conn := newTestConn()
	o := armed(newEchoObserver(5 * time.Millisecond))

	result := make(chan error, 1)
	o.onTimeout = func() {
		result <- r.WaitFor(o, nil)
	}

	_, err := Submit[echoObserver](r, conn, o)
	require.NoError(t, err)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, errs.ErrWrongUsage)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnTimeout to run")
	}
}
