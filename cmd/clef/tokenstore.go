package main

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// loadTokenFile reads a previously issued token pair from path.
func loadTokenFile(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	return &tok, nil
}

// saveTokenFile persists tok to path with owner-only permissions, since it
// carries a live access/refresh token pair.
func saveTokenFile(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", path, err)
	}
	return nil
}
