// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Name: "agent",
		Connection: Connection{
			Kind:    TransportWebSocket,
			URL:     "wss://example.test/api/v2/device",
			Newline: "\n",
		},
		Runner: Runner{Kind: RunnerCooperative},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Validate(&cfg))
}

func TestValidateRejectsMissingName(t *testing.T) {
	cfg := validConfig()
	cfg.Name = ""
	assert.Error(t, Validate(&cfg))
}

func TestValidateRejectsMissingConnectionURL(t *testing.T) {
	cfg := validConfig()
	cfg.Connection.URL = ""
	assert.Error(t, Validate(&cfg))
}
