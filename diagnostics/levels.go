// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package diagnostics provides the two semantic log levels below INFO that
// the observation runtime's logging surface requires (§6: RAW_DATA, TRACE),
// and the process-wide unraised-exception registry used for test cleanliness
// assertions (§7).
package diagnostics

import "go.uber.org/zap/zapcore"

const (
	// RawData is emitted once per inbound chunk, before decoding.
	RawData zapcore.Level = zapcore.DebugLevel - 1

	// Trace is emitted for subscribe/unsubscribe bookkeeping.
	Trace zapcore.Level = zapcore.DebugLevel - 2
)

// LevelString renders the two custom levels the way sallust's encoder
// config expects a LevelEncoder to; zap's default encoders only know about
// the levels they ship with, so RAW_DATA/TRACE fall back through this
// before anything below DebugLevel is printed.
func LevelString(l zapcore.Level) string {
	switch l {
	case RawData:
		return "rawdata"
	case Trace:
		return "trace"
	default:
		return l.String()
	}
}
