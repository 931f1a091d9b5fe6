// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/connobserve/connection"
	transevent "github.com/xmidt-org/connobserve/transport/event"
)

func TestLoopbackRoundTripsSentDataIntoConnection(t *testing.T) {
	l := NewLoopback("dev")

	var got []byte
	oc := connection.New("dev", l.Send)
	l.Bind(oc)

	connection.SubscribeFree(oc, func(text string) {
		got = append(got, []byte(text)...)
	}, nil)

	require.NoError(t, l.Start(context.Background()))
	require.NoError(t, oc.Send("ping"))

	assert.Equal(t, "ping", string(got))
}

func TestLoopbackPublishesConnectAndDisconnect(t *testing.T) {
	l := NewLoopback("dev")

	var connected, disconnected bool
	l.OnConnect(func(transevent.Connect) { connected = true })
	l.OnDisconnect(func(transevent.Disconnect) { disconnected = true })

	require.NoError(t, l.Start(context.Background()))
	require.NoError(t, l.Stop())

	assert.True(t, connected)
	assert.True(t, disconnected)
}
