// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestLevelStringRendersCustomLevels(t *testing.T) {
	assert.Equal(t, "rawdata", LevelString(RawData))
	assert.Equal(t, "trace", LevelString(Trace))
	assert.Equal(t, zapcore.InfoLevel.String(), LevelString(zapcore.InfoLevel))
}

func TestRecordUnraisedThenMarkReadRemovesEntry(t *testing.T) {
	DrainUnraised()

	id := new(int)
	RecordUnraised(id, "probe", errors.New("boom"), time.Now())
	MarkRead(id)

	assert.Empty(t, DrainUnraised())
}

func TestDrainUnraisedReturnsAndClearsPendingEntries(t *testing.T) {
	DrainUnraised()

	first, second := new(int), new(int)
	boom := errors.New("boom")
	RecordUnraised(first, "probe-1", boom, time.Now())
	RecordUnraised(second, "probe-2", boom, time.Now())

	got := DrainUnraised()
	assert.Len(t, got, 2)
	assert.Empty(t, DrainUnraised())
}
