// Package credentials provides token providers for hub authentication.
package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
)

// Credentials supplies the authorization token attached to every
// connection attempt. It aliases the provider contract the consumer
// expects, so any implementation here plugs in directly.
type Credentials interface {
	// Token returns the token to present, refreshing it first when
	// necessary.
	Token(ctx context.Context) (string, error)
}

type accessTokenCredentials struct {
	token string
}

// NewAccessTokenCredentials wraps a pre-issued token. The token is
// returned as-is for the lifetime of the provider; rotation is the
// caller's concern.
func NewAccessTokenCredentials(token string) Credentials {
	return accessTokenCredentials{token: token}
}

// Token implements Credentials.
func (a accessTokenCredentials) Token(_ context.Context) (string, error) {
	return a.token, nil
}

// SignedTokenOption configures NewSignedTokenCredentials.
type SignedTokenOption func(c *signedTokenCredentials)

// WithTokenTTL sets the lifetime of each issued token. Default one hour.
func WithTokenTTL(ttl time.Duration) SignedTokenOption {
	return func(c *signedTokenCredentials) {
		c.ttl = ttl
	}
}

// WithSigningMethod replaces the signature algorithm. Default HS256.
func WithSigningMethod(m jwt.SigningMethod) SignedTokenOption {
	return func(c *signedTokenCredentials) {
		c.method = m
	}
}

// WithAudience sets the aud claim of issued tokens.
func WithAudience(audience string) SignedTokenOption {
	return func(c *signedTokenCredentials) {
		c.audience = audience
	}
}

// WithSigningClock substitutes the time source, for tests.
func WithSigningClock(clock clockwork.Clock) SignedTokenOption {
	return func(c *signedTokenCredentials) {
		c.clock = clock
	}
}

type signedTokenCredentials struct {
	keyName string
	key     interface{}
	method  jwt.SigningMethod
	ttl     time.Duration

	audience string
	clock    clockwork.Clock

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewSignedTokenCredentials issues short-lived JWTs signed with key and
// keyed by keyName in the token header. Tokens are cached and reissued
// shortly before expiry, so Token stays cheap on the hot path.
func NewSignedTokenCredentials(keyName string, key interface{}, opts ...SignedTokenOption) Credentials {
	c := &signedTokenCredentials{
		keyName: keyName,
		key:     key,
		method:  jwt.SigningMethodHS256,
		ttl:     time.Hour,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Token implements Credentials.
func (c *signedTokenCredentials) Token(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token, nil
	}

	issuedAt := now
	expiresAt := now.Add(c.ttl)

	t := jwt.NewWithClaims(c.method, jwt.RegisteredClaims{
		Issuer:    c.keyName,
		Audience:  c.audienceClaim(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	t.Header["kid"] = c.keyName

	signed, err := t.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("credentials: sign token: %w", err)
	}

	c.token = signed
	// Renew ahead of the deadline so in-flight requests never present a
	// token about to lapse.
	c.expiresAt = expiresAt.Add(-c.ttl / 10)

	return c.token, nil
}

func (c *signedTokenCredentials) audienceClaim() jwt.ClaimStrings {
	if c.audience == "" {
		return nil
	}

	return jwt.ClaimStrings{c.audience}
}
