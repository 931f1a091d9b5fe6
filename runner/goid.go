// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id from the header line of
// its own stack trace ("goroutine 123 [running]:"). Go exposes no supported
// API for this; parsing runtime.Stack's header is the conventional
// workaround used by goroutine-local-storage shims.
//
// Its one use here is best-effort detection of a WaitFor call made from
// inside a Cooperative runner's own dispatcher goroutine (spec §4.D,
// "WrongUsage ... detected best-effort"): such a call would block the
// single goroutine that is supposed to be driving that very wait forward,
// the same deadlock an equivalent blocking call from inside an event loop's
// own callback would cause.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}
