// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package errs holds the sentinel error taxonomy shared by the observation
// runtime: connection, observer, runner, and parser.
package errs

import "errors"

var (
	// ErrTransport is returned synchronously from ObservableConnection.Send
	// when the outbound callable fails.
	ErrTransport = errors.New("transport error")

	// ErrResultNotReady is returned from Observer.Result when the observer
	// has not yet reached a terminal state.
	ErrResultNotReady = errors.New("result not ready")

	// ErrTimeout marks an observer that reached TimedOut.
	ErrTimeout = errors.New("timeout")

	// ErrCancelled marks an observer, or a Future, that was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrWrongUsage is raised synchronously at the call site for API misuse:
	// submitting a non-armed or already-done observer, or calling a blocking
	// wait from inside a cooperative runner's dispatcher goroutine.
	ErrWrongUsage = errors.New("wrong usage")

	// ErrRunnerClosed is returned by Submit once a Runner has left the
	// Running state.
	ErrRunnerClosed = errors.New("runner closed")

	// ErrCommandFailure is a generic failure raised by a parser/command
	// implementation; it is stored on the observer like any other
	// DataReceived error.
	ErrCommandFailure = errors.New("command failure")

	// ErrParsingDone is the control-flow sentinel a parser raises to
	// short-circuit the remaining classifiers for a single line. It must
	// never surface past parser.LineFramer.
	ErrParsingDone = errors.New("parsing done")
)
