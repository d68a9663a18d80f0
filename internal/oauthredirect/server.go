// Package oauthredirect implements the local HTTP server that completes an
// OAuth authorization-code grant on behalf of the platform and Spotify
// clients: it serves the redirect URI, matches the returned state against a
// pending-tokens map, exchanges the code, and hands the result to whichever
// caller is awaiting it on a one-shot channel.
package oauthredirect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/clefbot/clef/internal/logging"
)

// ErrExpired is returned to a caller whose pending entry aged out before a
// callback arrived.
var ErrExpired = errors.New("oauthredirect: pending request expired")

// ErrUnknownState names the case of a callback whose state does not match
// any pending request. handleCallback answers such a callback with 400 Bad
// Request and does not return this error.
var ErrUnknownState = errors.New("oauthredirect: unrecognized state")

const pendingTTL = 5 * time.Minute

// Exchanger exchanges an authorization code for a token. Implementations
// wrap a provider-specific client: *oauth2.Config.Exchange for the streaming
// platform, spotifyauth.Authenticator.Token for Spotify.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// ExchangerFunc adapts a plain function to Exchanger.
type ExchangerFunc func(ctx context.Context, code string) (*oauth2.Token, error)

// Exchange implements Exchanger.
func (f ExchangerFunc) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f(ctx, code)
}

type exchangeResult struct {
	token *oauth2.Token
	err   error
}

type pendingEntry struct {
	ch        chan exchangeResult
	exchanger Exchanger
	expiresAt time.Time
}

// Server serves the `/callback` redirect URI and tracks pending
// authorization requests keyed by the `state` value each request was
// started with.
type Server struct {
	log *logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingEntry

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

// New constructs a Server. Call Run to start its background janitor and
// Handler to obtain the http.Handler to mount at the redirect path.
func New(log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewTestLogger()
	}
	return &Server{
		log:         log,
		pending:     make(map[string]*pendingEntry),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
}

// Await registers state as a pending authorization request using exchanger
// to redeem whatever code the matching callback delivers, then blocks until
// the callback arrives, the entry expires, or ctx is done.
func (s *Server) Await(ctx context.Context, state string, exchanger Exchanger) (*oauth2.Token, error) {
	entry := &pendingEntry{
		ch:        make(chan exchangeResult, 1),
		exchanger: exchanger,
		expiresAt: time.Now().Add(pendingTTL),
	}

	s.mu.Lock()
	s.pending[state] = entry
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, state)
		s.mu.Unlock()
	}()

	select {
	case result := <-entry.ch:
		return result.token, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Handler returns the http.Handler serving the redirect callback.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	return mux
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		s.deliver(state, exchangeResult{err: fmt.Errorf("oauthredirect: provider returned error: %s", errMsg)})
		http.Error(w, "authorization denied", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	entry, ok := s.pending[state]
	s.mu.Unlock()
	if !ok {
		s.log.Warn("oauth callback with unrecognized state", logging.String("state", state))
		http.Error(w, "unrecognized or expired request", http.StatusBadRequest)
		return
	}

	token, err := entry.exchanger.Exchange(ctx, code)
	if err != nil {
		s.log.Error("oauth code exchange failed", logging.Error(err))
		s.deliver(state, exchangeResult{err: fmt.Errorf("oauthredirect: exchange: %w", err)})
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	s.deliver(state, exchangeResult{token: token})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("authorization complete, you may close this window"))
}

func (s *Server) deliver(state string, result exchangeResult) {
	s.mu.Lock()
	entry, ok := s.pending[state]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case entry.ch <- result:
	default:
	}
}

// Run starts the janitor that expires pending requests older than five
// minutes, delivering ErrExpired to their waiters. It blocks until ctx is
// done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	now := time.Now()
	s.mu.Lock()
	expired := make([]string, 0)
	for state, entry := range s.pending {
		if now.After(entry.expiresAt) {
			expired = append(expired, state)
		}
	}
	s.mu.Unlock()

	for _, state := range expired {
		s.deliver(state, exchangeResult{err: ErrExpired})
		s.mu.Lock()
		delete(s.pending, state)
		s.mu.Unlock()
	}
}
