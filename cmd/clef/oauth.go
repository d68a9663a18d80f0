package main

import (
	"context"
	"fmt"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/clefbot/clef/internal/config"
	"github.com/clefbot/clef/internal/oauthredirect"
)

// redirectURL builds the callback URL the OAuth provider redirects back to,
// reusing the same host/port normalisation the redirect server's listener
// itself applies.
func redirectURL(cfg config.OAuthConfig) string {
	return "http://" + oauthredirect.ListenerURL(cfg.RedirectAddr, false) + cfg.RedirectPath
}

// platformOAuthConfig builds the oauth2.Config describing the streaming
// platform's authorization endpoint.
func platformOAuthConfig(cfg config.OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.PlatformID,
		ClientSecret: cfg.PlatformSecret,
		RedirectURL:  redirectURL(cfg),
		Scopes:       []string{"chat:read", "chat:edit", "moderation:read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://id.example-chat.tv/oauth2/authorize",
			TokenURL: "https://id.example-chat.tv/oauth2/token",
		},
	}
}

// spotifyAuthenticator builds the Spotify authorization client.
func spotifyAuthenticator(cfg config.OAuthConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURL(cfg)),
		spotifyauth.WithClientID(cfg.SpotifyID),
		spotifyauth.WithClientSecret(cfg.SpotifySecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
		),
	)
}

// issueToken starts the redirect server, prints the authorize URL for the
// operator to open, and blocks until the callback delivers a token or ctx
// is done.
func issueToken(ctx context.Context, srv *oauthredirect.Server, authURL string, state string, exchanger oauthredirect.Exchanger) (*oauth2.Token, error) {
	fmt.Println("open the following URL in a browser to authorize clef:")
	fmt.Println(authURL)
	return srv.Await(ctx, state, exchanger)
}
