// Package webapi exposes the bot's WebSocket surface: one fan-out hub per
// route (chat messages, overlay commands, YouTube overlay reports),
// authenticated the same way the teacher's broker authenticates its own
// WebSocket upgrade.
package webapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clefbot/clef/internal/auth"
)

// Authenticator validates an inbound WebSocket upgrade request and returns
// the logical client identifier to attribute the connection to.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request) (string, error) {
	return "", nil
}

// NewAllowAllAuthenticator builds an Authenticator that admits every
// upgrade request, for routes run without a configured HMAC secret (local
// development, or a deployment that authenticates at a reverse proxy).
func NewAllowAllAuthenticator() Authenticator {
	return allowAllAuthenticator{}
}

type hmacAuthenticator struct {
	verifier *auth.HMACTokenVerifier
}

// NewHMACAuthenticator builds an Authenticator validating HS256 tokens
// against secret, read from the `auth_token` query parameter or the
// `X-Auth-Token` header.
func NewHMACAuthenticator(secret string) (Authenticator, error) {
	verifier, err := auth.NewHMACTokenVerifier(secret, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &hmacAuthenticator{verifier: verifier}, nil
}

func (a *hmacAuthenticator) Authenticate(r *http.Request) (string, error) {
	if a == nil || a.verifier == nil {
		return "", errors.New("verifier not configured")
	}
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		return "", errors.New("missing auth token")
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
