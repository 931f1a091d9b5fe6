// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTripsTextThroughBytes(t *testing.T) {
	c := Identity()

	encoded, err := c.Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), encoded)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded)
}

func TestWRPRoundTripsPayloadThroughEnvelope(t *testing.T) {
	c := WRP("mac:112233445566/agent", "event:device-status")

	encoded, err := c.Encode("ping")
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "ping", decoded)
}

func TestWRPDecodeRejectsGarbage(t *testing.T) {
	c := WRP("mac:112233445566/agent", "event:device-status")

	_, err := c.Decode([]byte("not msgpack"))
	assert.Error(t, err)
}
