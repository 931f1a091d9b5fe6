// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package transport binds an ObservableConnection to an actual byte pipe
// (spec §6, "Transport binding"): TCP, WebSocket, a mangos PAIR socket, or
// an in-memory Loopback for tests. Every flavour publishes
// connect/disconnect notifications through eventor.Eventor registries
// (WebSocket also publishes heartbeats), the same listener shape the
// teacher's own websocket transport uses.
package transport

import (
	"context"

	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/eventor"
	transevent "github.com/xmidt-org/connobserve/transport/event"
)

// Transport is the contract every concrete binding satisfies.
type Transport interface {
	// Start dials or otherwise opens the underlying link and begins
	// feeding inbound data to the bound ObservableConnection. It returns
	// once the first connection attempt either succeeds or ctx is done.
	Start(ctx context.Context) error

	// Stop closes the underlying link and stops any reconnect loop.
	Stop() error

	// Send hands raw bytes to the underlying link.
	Send(data []byte) error

	// OnConnect, OnDisconnect, and OnHeartbeat register listeners for this
	// transport's lifecycle events. The returned CancelFunc removes the
	// listener.
	OnConnect(fn func(transevent.Connect)) eventor.CancelFunc
	OnDisconnect(fn func(transevent.Disconnect)) eventor.CancelFunc
	OnHeartbeat(fn func(transevent.Heartbeat)) eventor.CancelFunc
}

// Binder is satisfied by every concrete transport in this package: Bind is
// how the transport learns which ObservableConnection to feed inbound data
// into via DataReceived.
type Binder interface {
	Bind(oc *connection.ObservableConnection)
}
