// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package parser provides LineFramer, the line-buffering base most
// concrete observers (commands and events alike) build on: it turns the
// raw text chunks a connection delivers into discrete lines, the unit
// every line-oriented device protocol actually speaks in.
package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/connobserve/observer"
)

// LineFramer embeds observer.Base and re-assembles inbound text into
// lines, calling onLine for each one. isFullLine is true for a line that
// ended with the connection's newline sequence, false for the trailing
// partial line still sitting in the buffer after the chunk that triggered
// this call - callers matching a prompt that never sends a newline need
// this distinction, exactly as moler's on_new_line(line, is_full_line)
// does.
//
// onLine returning errs.ErrParsingDone means "nothing further to do with
// this line," and is swallowed rather than failing the observer; the
// remaining lines of the chunk are still dispatched. Any other non-nil
// error is stored via SetException.
type LineFramer struct {
	*observer.Base

	newline string
	onLine  func(line string, isFullLine bool) error

	buf strings.Builder
}

// NewLineFramer constructs a LineFramer. newline is normally the
// connection's own Newline(); onLine is usually a method value bound to
// the concrete observer embedding this LineFramer, e.g.
// du.classifyLine.
func NewLineFramer(name string, timeout time.Duration, newline string, onLine func(line string, isFullLine bool) error) *LineFramer {
	return &LineFramer{
		Base:    observer.New(name, timeout),
		newline: newline,
		onLine:  onLine,
	}
}

// DataReceived implements the Observer data path: buffer, split on
// newline, dispatch each complete line, then dispatch whatever partial
// line remains. A done observer drops incoming data - the data path stays
// secure after done (spec §4.C).
func (lf *LineFramer) DataReceived(text string) {
	if lf.Done() {
		return
	}

	lf.buf.WriteString(text)
	remaining := lf.buf.String()

	for {
		idx := strings.Index(remaining, lf.newline)
		if idx < 0 {
			break
		}

		line := remaining[:idx]
		remaining = remaining[idx+len(lf.newline):]

		if err := lf.dispatch(line, true); err != nil {
			lf.buf.Reset()
			lf.buf.WriteString(remaining)
			return
		}
	}

	lf.buf.Reset()
	lf.buf.WriteString(remaining)

	if remaining != "" {
		_ = lf.dispatch(remaining, false)
	}
}

func (lf *LineFramer) dispatch(line string, isFullLine bool) error {
	err := lf.onLine(line, isFullLine)
	if err == nil {
		return nil
	}

	if errors.Is(err, errs.ErrParsingDone) {
		return nil
	}

	lf.SetException(err)
	return err
}
