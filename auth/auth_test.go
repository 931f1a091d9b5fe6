// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerDecorateSetsAuthorizationHeader(t *testing.T) {
	calls := 0
	b := NewBearer(func(ctx context.Context) (string, error) {
		calls++
		return "opaque-token", nil
	})

	header := http.Header{}
	require.NoError(t, b.Decorate(context.Background(), header))
	assert.Equal(t, "Bearer opaque-token", header.Get("Authorization"))

	// An opaque (non-JWT) token never expires, so a second Decorate call
	// should reuse it rather than refreshing again.
	require.NoError(t, b.Decorate(context.Background(), http.Header{}))
	assert.Equal(t, 1, calls)
}

func TestBearerPropagatesRefreshError(t *testing.T) {
	boom := errors.New("refresh failed")
	b := NewBearer(func(ctx context.Context) (string, error) {
		return "", boom
	})

	err := b.Decorate(context.Background(), http.Header{})
	assert.ErrorIs(t, err, boom)
}
