package main

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/clefbot/clef/internal/token"
)

// managerTokenSource adapts a token.Manager to oauth2.TokenSource, so the
// platform REST client and the Spotify SDK client can be built directly
// over whichever provider is already keeping the token fresh.
type managerTokenSource struct {
	ctx context.Context
	mgr *token.Manager
}

func newManagerTokenSource(ctx context.Context, mgr *token.Manager) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, mgr: mgr}
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	if err := s.mgr.WaitUntilReady(s.ctx); err != nil {
		return nil, err
	}
	return s.mgr.Read()
}
