// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/xmidt-org/wrp-go/v5"
)

// WRP returns a Codec that wraps msgpack-encoded WRP envelopes instead of
// passing text through unchanged. Decode unwraps an inbound wrp.Message and
// yields its Payload as text; Encode wraps outbound text into a
// SimpleEventMessageType envelope addressed between source and destination.
//
// This demonstrates that a Codec may sit on top of a structured wire format
// without the rest of the observation runtime knowing about it: the
// ObservableConnection still only sees text in and bytes out.
func WRP(source, destination string) Codec {
	return Codec{
		Encode: func(s string) ([]byte, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return nil, fmt.Errorf("wrp codec: %w", err)
			}

			msg := wrp.Message{
				Type:            wrp.SimpleEventMessageType,
				Source:          source,
				Destination:     destination,
				TransactionUUID: id.String(),
				Payload:         []byte(s),
			}

			return wrp.MustEncode(&msg, wrp.Msgpack), nil
		},
		Decode: func(b []byte) (string, error) {
			var msg wrp.Message
			if err := wrp.NewDecoderBytes(bytes.TrimSpace(b), wrp.Msgpack).Decode(&msg); err != nil {
				return "", fmt.Errorf("wrp codec: %w", err)
			}

			return string(msg.Payload), nil
		},
	}
}
