// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/connobserve/errs"
)

type fakeSubject struct {
	mu  sync.Mutex
	got []string
}

func (f *fakeSubject) DataReceived(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, text)
}

func (f *fakeSubject) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func newTestConn(send func([]byte) error) *ObservableConnection {
	if send == nil {
		send = func([]byte) error { return nil }
	}
	return New("test", send)
}

func TestSendEncodesAndCallsOutbound(t *testing.T) {
	var got []byte
	oc := newTestConn(func(b []byte) error {
		got = b
		return nil
	})

	require.NoError(t, oc.Send("hello"))
	assert.Equal(t, "hello", string(got))
}

func TestSendWrapsTransportError(t *testing.T) {
	boom := errors.New("boom")
	oc := newTestConn(func(b []byte) error { return boom })

	err := oc.Send("hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestSubscribeDeliversData(t *testing.T) {
	oc := newTestConn(nil)
	subj := &fakeSubject{}

	Subscribe[fakeSubject](oc, subj, nil)
	oc.DataReceived([]byte("line one"))

	assert.Equal(t, []string{"line one"}, subj.snapshot())
}

func TestSubscribeIsIdempotent(t *testing.T) {
	oc := newTestConn(nil)
	subj := &fakeSubject{}

	Subscribe[fakeSubject](oc, subj, nil)
	Subscribe[fakeSubject](oc, subj, nil)
	assert.Equal(t, 1, oc.Len())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	oc := newTestConn(nil)
	subj := &fakeSubject{}

	Subscribe[fakeSubject](oc, subj, nil)
	Unsubscribe[fakeSubject](oc, subj)
	oc.DataReceived([]byte("after unsubscribe"))

	assert.Empty(t, subj.snapshot())
	assert.Equal(t, 0, oc.Len())
}

func TestSubscribeWeakReferenceStopsDeliveryOnceCollected(t *testing.T) {
	oc := newTestConn(nil)

	func() {
		subj := &fakeSubject{}
		Subscribe[fakeSubject](oc, subj, nil)
	}()

	// Force a collection cycle so the weak pointer the registry holds
	// really does clear - this is the one test in this package that has
	// to lean on the runtime instead of just asserting behavior directly.
	for i := 0; i < 5 && oc.Len() > 0; i++ {
		runtime.GC()
		oc.DataReceived([]byte("ping"))
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 0, oc.Len())
}

func TestSubscribeFreeHoldsCallbackStrongly(t *testing.T) {
	oc := newTestConn(nil)

	var mu sync.Mutex
	var got []string
	fn := func(text string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, text)
	}

	SubscribeFree(oc, fn, nil)
	runtime.GC()
	oc.DataReceived([]byte("still here"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"still here"}, got)
}

func TestShutdownInvokesOnCloseOnceAndClearsRegistry(t *testing.T) {
	oc := newTestConn(nil)
	subj := &fakeSubject{}

	var calls int
	Subscribe[fakeSubject](oc, subj, func() { calls++ })

	oc.Shutdown()
	oc.Shutdown()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, oc.Len())
	assert.False(t, oc.IsOpen())
}

func TestDataReceivedAfterShutdownIsDropped(t *testing.T) {
	oc := newTestConn(nil)
	subj := &fakeSubject{}
	Subscribe[fakeSubject](oc, subj, nil)

	oc.Shutdown()
	oc.DataReceived([]byte("late"))

	assert.Empty(t, subj.snapshot())
}
