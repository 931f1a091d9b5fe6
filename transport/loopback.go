// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/eventor"
	transevent "github.com/xmidt-org/connobserve/transport/event"
)

// Loopback is a dependency-free in-memory Transport: Send loops bytes
// straight back into the bound connection's DataReceived. It exists for
// this module's own tests, which need a Transport without pulling in a
// real network dependency.
type Loopback struct {
	mu sync.Mutex
	oc *connection.ObservableConnection

	connectListeners    eventor.Eventor[transevent.ConnectListener]
	disconnectListeners eventor.Eventor[transevent.DisconnectListener]

	name string
}

// NewLoopback constructs a Loopback transport named name.
func NewLoopback(name string) *Loopback {
	return &Loopback{name: name}
}

// Bind implements Binder.
func (l *Loopback) Bind(oc *connection.ObservableConnection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.oc = oc
}

// Start publishes a Connect event; there is no real link to dial.
func (l *Loopback) Start(ctx context.Context) error {
	l.connectListeners.Visit(func(ln transevent.ConnectListener) {
		ln.Connect(transevent.Connect{Name: l.name, At: time.Now()})
	})
	return nil
}

// Stop publishes a Disconnect event.
func (l *Loopback) Stop() error {
	l.disconnectListeners.Visit(func(ln transevent.DisconnectListener) {
		ln.Disconnect(transevent.Disconnect{Name: l.name, At: time.Now()})
	})
	return nil
}

// Send loops data directly into the bound connection's DataReceived, as
// if it had arrived over a real link.
func (l *Loopback) Send(data []byte) error {
	l.mu.Lock()
	oc := l.oc
	l.mu.Unlock()

	if oc != nil {
		oc.DataReceived(data)
	}
	return nil
}

// OnConnect registers fn for Connect notifications.
func (l *Loopback) OnConnect(fn func(transevent.Connect)) eventor.CancelFunc {
	return l.connectListeners.Add(transevent.ConnectFunc(fn))
}

// OnDisconnect registers fn for Disconnect notifications.
func (l *Loopback) OnDisconnect(fn func(transevent.Disconnect)) eventor.CancelFunc {
	return l.disconnectListeners.Add(transevent.DisconnectFunc(fn))
}

// OnHeartbeat registers fn for Heartbeat notifications. Loopback never
// publishes one; the registration is accepted for interface compliance.
func (l *Loopback) OnHeartbeat(fn func(transevent.Heartbeat)) eventor.CancelFunc {
	return func() {}
}
