// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the pure bytes<->text transformation pair used by
// connection.ObservableConnection. Codecs are stateless: Decode must never
// partially consume its input, returning the full decoded text for each
// chunk it is given. Stateful line framing belongs to the parser package,
// not here.
package codec

// Codec is a pair of pure functions converting outgoing text to bytes and
// incoming bytes to text.
type Codec struct {
	// Encode converts outbound text into the bytes handed to the transport.
	Encode func(string) ([]byte, error)

	// Decode converts inbound bytes into text. It must return the complete
	// decoded text for the chunk given; it may not buffer partial results.
	Decode func([]byte) (string, error)
}

// Identity returns the default Codec: bytes and text are the same thing,
// modulo a UTF-8 round trip.
func Identity() Codec {
	return Codec{
		Encode: func(s string) ([]byte, error) {
			return []byte(s), nil
		},
		Decode: func(b []byte) (string, error) {
			return string(b), nil
		},
	}
}
