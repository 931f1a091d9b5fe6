// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package auth provides outbound request decorators for transports that
// need to authenticate their handshake, grounded on the teacher's JWT
// handling (it depends on lestrrat-go/jwx/v2 for parsing bearer tokens
// elsewhere in its credential pipeline).
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Decorator adds authentication material to an outbound request's headers
// before a transport dials.
type Decorator interface {
	Decorate(ctx context.Context, header http.Header) error
}

// DecoratorFunc adapts a plain func to Decorator.
type DecoratorFunc func(ctx context.Context, header http.Header) error

// Decorate implements Decorator.
func (f DecoratorFunc) Decorate(ctx context.Context, header http.Header) error { return f(ctx, header) }

// TokenRefresher mints a fresh bearer token, typically by calling out to an
// issuer. Bearer calls it once up front and again whenever the current
// token's exp claim has passed.
type TokenRefresher func(ctx context.Context) (string, error)

// Bearer is a Decorator that attaches "Authorization: Bearer <token>",
// re-minting the token via refresh once the previous one's JWT exp claim
// has elapsed. If the current token does not parse as a JWT (e.g. an
// opaque string), it is treated as never-expiring and reused as-is.
type Bearer struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	refresh TokenRefresher
}

// NewBearer constructs a Bearer decorator. refresh is called immediately on
// the first Decorate call and again any time the held token has expired.
func NewBearer(refresh TokenRefresher) *Bearer {
	return &Bearer{refresh: refresh}
}

// Decorate implements Decorator.
func (b *Bearer) Decorate(ctx context.Context, header http.Header) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token == "" || (!b.expires.IsZero() && time.Now().After(b.expires)) {
		token, err := b.refresh(ctx)
		if err != nil {
			return fmt.Errorf("auth: refresh token: %w", err)
		}

		b.token = token
		b.expires = expiryOf(token)
	}

	header.Set("Authorization", "Bearer "+b.token)
	return nil
}

// expiryOf returns the exp claim of token if it parses as a JWT, or the
// zero time (meaning "never expires" to Decorate) otherwise. Signature
// verification is intentionally skipped here - Bearer only reads back a
// token it minted itself via refresh, it does not trust one from the wire.
func expiryOf(token string) time.Time {
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return time.Time{}
	}

	return parsed.Expiration()
}
