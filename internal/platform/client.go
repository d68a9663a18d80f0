// Package platform implements a thin REST client over the streaming
// platform's chat-moderation endpoints, following the same request/decode
// shape zmb3/spotify's client uses: an oauth2.TokenSource-backed
// *http.Client, one method per endpoint, errors wrapped with the endpoint
// name. It exists to satisfy roles.Lister.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the platform's REST API root.
const DefaultBaseURL = "https://api.example-chat.tv/v1"

// Client drives the moderator/VIP list endpoints for one channel.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	streamerLogin string
}

// New builds a Client that authenticates outgoing requests using tokens
// drawn from src, matching spotifyauth's pattern of wrapping an
// oauth2.TokenSource in an *http.Client rather than attaching headers by
// hand.
func New(ctx context.Context, src oauth2.TokenSource, streamerLogin string) *Client {
	return &Client{
		httpClient:    oauth2.NewClient(ctx, src),
		baseURL:       DefaultBaseURL,
		streamerLogin: streamerLogin,
	}
}

// WithBaseURL overrides the API root, for tests against an httptest server.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type loginList struct {
	Logins []string `json:"logins"`
}

// ListModerators implements roles.Lister.
func (c *Client) ListModerators(ctx context.Context) ([]string, error) {
	return c.listLogins(ctx, "/moderation/moderators")
}

// ListVIPs implements roles.Lister.
func (c *Client) ListVIPs(ctx context.Context) ([]string, error) {
	return c.listLogins(ctx, "/moderation/vips")
}

func (c *Client) listLogins(ctx context.Context, path string) ([]string, error) {
	endpoint := c.baseURL + path + "?" + url.Values{"channel": {c.streamerLogin}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: build request for %s: %w", path, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("platform: %s returned status %d", path, resp.StatusCode)
	}
	var out loginList
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("platform: decode %s response: %w", path, err)
	}
	return out.Logins, nil
}
