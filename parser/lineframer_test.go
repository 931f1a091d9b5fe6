// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/connobserve/errs"
)

func TestLineFramerSplitsFullAndPartialLines(t *testing.T) {
	var fullLines []string
	var partial string

	lf := NewLineFramer("t", time.Second, "\n", func(line string, isFullLine bool) error {
		if isFullLine {
			fullLines = append(fullLines, line)
		} else {
			partial = line
		}
		return nil
	})

	lf.DataReceived("one\ntwo\nthr")

	assert.Equal(t, []string{"one", "two"}, fullLines)
	assert.Equal(t, "thr", partial)
}

func TestLineFramerAccumulatesAcrossChunks(t *testing.T) {
	var fullLines []string
	lf := NewLineFramer("t", time.Second, "\n", func(line string, isFullLine bool) error {
		if isFullLine {
			fullLines = append(fullLines, line)
		}
		return nil
	})

	lf.DataReceived("par")
	lf.DataReceived("tial\n")

	assert.Equal(t, []string{"partial"}, fullLines)
}

func TestLineFramerSwallowsParsingDone(t *testing.T) {
	calls := 0
	lf := NewLineFramer("t", time.Second, "\n", func(line string, isFullLine bool) error {
		calls++
		return errs.ErrParsingDone
	})

	lf.DataReceived("one\ntwo\n")

	assert.Equal(t, 2, calls)
	assert.False(t, lf.Done())
}

func TestLineFramerOtherErrorSetsException(t *testing.T) {
	boom := errors.New("boom")
	lf := NewLineFramer("t", time.Second, "\n", func(line string, isFullLine bool) error {
		return boom
	})

	lf.DataReceived("one\n")

	require.True(t, lf.Done())
	_, err := lf.Result()
	assert.ErrorIs(t, err, boom)
}

func TestLineFramerDropsDataAfterDone(t *testing.T) {
	calls := 0
	lf := NewLineFramer("t", time.Second, "\n", func(line string, isFullLine bool) error {
		calls++
		return nil
	})

	lf.SetResult("done early")
	lf.DataReceived("should not be seen\n")

	assert.Equal(t, 0, calls)
}
