package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func staticTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

func TestListModeratorsDecodesLogins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderation/moderators" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"logins":["alice","bob"]}`))
	}))
	defer srv.Close()

	client := New(context.Background(), staticTokenSource(), "streamer").WithBaseURL(srv.URL)
	logins, err := client.ListModerators(context.Background())
	if err != nil {
		t.Fatalf("list moderators: %v", err)
	}
	if len(logins) != 2 || logins[0] != "alice" || logins[1] != "bob" {
		t.Fatalf("unexpected logins: %v", logins)
	}
}

func TestListVIPsSurfacesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(context.Background(), staticTokenSource(), "streamer").WithBaseURL(srv.URL)
	if _, err := client.ListVIPs(context.Background()); err == nil {
		t.Fatalf("expected error for non-OK status")
	}
}
