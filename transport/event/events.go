// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package event defines the connect/disconnect/heartbeat notifications a
// transport.Transport publishes through eventor.Eventor listener
// registries - the same shape the teacher's websocket transport uses for
// its own connect/disconnect/heartbeat listeners.
package event

import "time"

// Connect is published once a transport's underlying link is established.
type Connect struct {
	Name string
	At   time.Time
}

// ConnectFunc adapts a plain func into something with a Connect(Connect)
// method, for use with eventor.Eventor[ConnectListener].
type ConnectFunc func(Connect)

// Connect implements ConnectListener.
func (f ConnectFunc) Connect(e Connect) { f(e) }

// ConnectListener receives Connect notifications.
type ConnectListener interface {
	Connect(Connect)
}

// Disconnect is published once a transport's underlying link drops,
// whether by remote close, local Stop, or reconnect-retry giving up.
type Disconnect struct {
	Name string
	Err  error
	At   time.Time
}

// DisconnectFunc adapts a plain func for eventor.Eventor[DisconnectListener].
type DisconnectFunc func(Disconnect)

// Disconnect implements DisconnectListener.
func (f DisconnectFunc) Disconnect(e Disconnect) { f(e) }

// DisconnectListener receives Disconnect notifications.
type DisconnectListener interface {
	Disconnect(Disconnect)
}

// Heartbeat is published whenever a transport that supports one completes
// a round-trip keepalive.
type Heartbeat struct {
	Name string
	At   time.Time
}

// HeartbeatFunc adapts a plain func for eventor.Eventor[HeartbeatListener].
type HeartbeatFunc func(Heartbeat)

// Heartbeat implements HeartbeatListener.
func (f HeartbeatFunc) Heartbeat(e Heartbeat) { f(e) }

// HeartbeatListener receives Heartbeat notifications.
type HeartbeatListener interface {
	Heartbeat(Heartbeat)
}
