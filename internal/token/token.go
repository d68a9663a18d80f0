// Package token holds the OAuth access/refresh token pair shared by the
// Spotify and platform chat clients. It is modeled on the broker's
// auth.HMACTokenVerifier: a small value guarded by a lock, with an
// incrementing generation counter so a holder can tell whether the token it
// read is still current without re-acquiring the lock on every use.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotAcquired is returned by Read when no token has ever been set.
var ErrNotAcquired = errors.New("token: no token acquired yet")

// Refresher obtains a new token, given the previous one (which may be nil on
// first acquisition). Implementations wrap a platform-specific OAuth2
// client — e.g. spotifyauth.Authenticator.Exchange, or the streaming
// platform's token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error)
}

// RefresherFunc adapts a plain function to Refresher.
type RefresherFunc func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
	return f(ctx, previous)
}

// Manager holds the current token generation and refreshes it on demand.
// Only one refresh runs at a time; concurrent callers of ForceRefresh during
// an in-flight refresh wait on the same result instead of racing the
// upstream token endpoint.
type Manager struct {
	mu         sync.Mutex
	refresher  Refresher
	token      *oauth2.Token
	generation uint64
	ready      chan struct{}
	refreshing chan struct{}
	now        func() time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithClock overrides the manager's clock, enabling deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// New constructs a Manager with no token yet acquired.
func New(refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		refresher: refresher,
		ready:     make(chan struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the current access token, or ErrNotAcquired if ForceRefresh
// has never completed successfully.
func (m *Manager) Read() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, ErrNotAcquired
	}
	return m.token, nil
}

// Generation returns the current token generation. Callers that cache a
// token outside the Manager can compare generations to detect a refresh
// without holding the lock.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// WaitUntilReady blocks until a valid (non-expired) token exists or ctx is
// done, whichever comes first.
func (m *Manager) WaitUntilReady(ctx context.Context) error {
	for {
		m.mu.Lock()
		tok := m.token
		ready := m.ready
		m.mu.Unlock()

		if tok != nil && tok.Valid() {
			return nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ForceRefresh fetches a fresh token and swaps it in as a new generation.
// Concurrent callers observe a single underlying refresh: the first caller
// performs it, later callers during the same refresh wait for and share its
// result.
func (m *Manager) ForceRefresh(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	if m.refreshing != nil {
		waiting := m.refreshing
		m.mu.Unlock()
		select {
		case <-waiting:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return m.Read()
	}
	previous := m.token
	done := make(chan struct{})
	m.refreshing = done
	m.mu.Unlock()

	fresh, err := m.refresher.Refresh(ctx, previous)

	m.mu.Lock()
	m.refreshing = nil
	close(done)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("token: refresh failed: %w", err)
	}
	m.token = fresh
	m.generation++
	oldReady := m.ready
	m.ready = make(chan struct{})
	m.mu.Unlock()
	close(oldReady)

	return fresh, nil
}

// RetryOnUnauthorized runs op; if it fails with errUnauthorized, the token is
// force-refreshed once and op is retried exactly once more. This mirrors the
// "on 401, force_refresh and retry once" contract shared by every downstream
// caller of the token manager.
func RetryOnUnauthorized(ctx context.Context, m *Manager, isUnauthorized func(error) bool, op func() error) error {
	err := op()
	if err == nil || !isUnauthorized(err) {
		return err
	}
	if _, refreshErr := m.ForceRefresh(ctx); refreshErr != nil {
		return fmt.Errorf("token: refresh after 401 failed: %w (original error: %v)", refreshErr, err)
	}
	return op()
}
