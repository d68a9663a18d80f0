package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/clefbot/clef/internal/config"
	"github.com/clefbot/clef/internal/logging"
	"github.com/clefbot/clef/internal/oauthredirect"
)

// randomState generates an unpredictable OAuth state parameter.
func randomState() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func newTokenCmd() *cobra.Command {
	var provider string
	var tokenFile string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or refresh OAuth tokens for the platform or Spotify",
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Run the local authorization flow and save a new token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(cmd.Context(), provider, tokenFile)
		},
	}
	issue.Flags().StringVar(&provider, "provider", "platform", "which provider to authorize (platform|spotify)")
	issue.Flags().StringVar(&tokenFile, "token-file", "", "path to write the issued token (defaults to CLEF_TOKEN_FILE)")

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Force-refresh a previously issued token and rewrite its file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRefresh(cmd.Context(), provider, tokenFile)
		},
	}
	refresh.Flags().StringVar(&provider, "provider", "platform", "which provider to refresh (platform|spotify)")
	refresh.Flags().StringVar(&tokenFile, "token-file", "", "path to the token file to refresh (defaults to CLEF_TOKEN_FILE)")

	cmd.AddCommand(issue, refresh)
	return cmd
}

func resolveTokenFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv("CLEF_TOKEN_FILE"); fromEnv != "" {
		return fromEnv
	}
	return "clef-token.json"
}

func runTokenIssue(ctx context.Context, provider, tokenFile string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	path := resolveTokenFile(tokenFile)

	srv := oauthredirect.New(log)
	httpSrv := &http.Server{Addr: cfg.OAuth.RedirectAddr, Handler: srv.Handler()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("oauth redirect server stopped", logging.Error(err))
		}
	}()
	defer httpSrv.Close()

	state := randomState()

	var tok *oauth2.Token
	switch provider {
	case "spotify":
		authenticator := spotifyAuthenticator(cfg.OAuth)
		tok, err = issueToken(ctx, srv, authenticator.AuthURL(state), state,
			oauthredirect.ExchangerFunc(func(ctx context.Context, code string) (*oauth2.Token, error) {
				return authenticator.Exchange(ctx, code)
			}))
	default:
		oauthCfg := platformOAuthConfig(cfg.OAuth)
		tok, err = issueToken(ctx, srv, oauthCfg.AuthCodeURL(state), state,
			oauthredirect.ExchangerFunc(func(ctx context.Context, code string) (*oauth2.Token, error) {
				return oauthCfg.Exchange(ctx, code)
			}))
	}
	if err != nil {
		return fmt.Errorf("issue %s token: %w", provider, err)
	}
	if err := saveTokenFile(path, tok); err != nil {
		return err
	}
	fmt.Printf("wrote %s token to %s\n", provider, path)
	return nil
}

func runTokenRefresh(ctx context.Context, provider, tokenFile string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := resolveTokenFile(tokenFile)

	previous, err := loadTokenFile(path)
	if err != nil {
		return fmt.Errorf("load existing token: %w", err)
	}

	var refreshed *oauth2.Token
	switch provider {
	case "spotify":
		authenticator := spotifyAuthenticator(cfg.OAuth)
		src := authenticator.TokenSource(ctx, previous)
		refreshed, err = src.Token()
	default:
		oauthCfg := platformOAuthConfig(cfg.OAuth)
		src := oauthCfg.TokenSource(ctx, previous)
		refreshed, err = src.Token()
	}
	if err != nil {
		return fmt.Errorf("refresh %s token: %w", provider, err)
	}
	if err := saveTokenFile(path, refreshed); err != nil {
		return err
	}
	fmt.Printf("refreshed %s token in %s\n", provider, path)
	return nil
}
