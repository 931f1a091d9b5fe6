// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	validate "gopkg.in/dealancer/validate.v2"
)

// Validate checks cfg against the `validate` struct tags above, the same
// way the teacher's cmd/xmidt-agent/config.go validates its own Config.
func Validate(cfg *Config) error {
	if err := validate.Validate(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
