// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package config describes the demo agent's on-disk configuration,
// loaded via goschtalt and validated with dealancer/validate.v2 - the same
// pair the teacher's own cmd/xmidt-agent/config.go uses.
package config

import (
	"time"

	"github.com/xmidt-org/sallust"
)

// Config is the root configuration object for cmd/connobserve-agent.
type Config struct {
	// Name identifies this agent instance; it is the name given to the
	// agent's ObservableConnection.
	Name string `validate:"empty=false"`

	// Connection describes which transport to dial and how the
	// ObservableConnection on top of it should behave.
	Connection Connection

	// Runner selects and tunes the scheduler observers are submitted to.
	Runner Runner

	// Logger configures the zap logger the same way the teacher's own
	// agent does.
	Logger sallust.Config
}

// TransportKind selects a concrete transport.Transport implementation.
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
	TransportTCP       TransportKind = "tcp"
	TransportNanomsg   TransportKind = "nanomsg"
)

// Connection configures the transport and the ObservableConnection on top
// of it.
type Connection struct {
	Kind TransportKind `validate:"empty=false"`

	// URL is the websocket URL, "host:port" TCP address, or nanomsg
	// listen URL, depending on Kind.
	URL string `validate:"empty=false"`

	Newline string

	// WRP, if true, wraps the connection's codec in codec.WRP using
	// Source/Destination below instead of passing text through as-is.
	WRP         bool
	Source      string
	Destination string
}

// RunnerKind selects a concrete runner.Runner implementation.
type RunnerKind string

const (
	RunnerThreaded    RunnerKind = "threaded"
	RunnerCooperative RunnerKind = "cooperative"
)

// Runner configures the scheduler observers are submitted to.
type Runner struct {
	Kind RunnerKind    `validate:"empty=false"`
	Tick time.Duration
}
