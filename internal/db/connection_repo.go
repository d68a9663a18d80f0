package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Connection links a chat login to an external provider account (Spotify,
// the streaming platform itself) for OAuth bookkeeping.
type Connection struct {
	Login      string
	Provider   string
	ExternalID string
}

// ConnectionRepo persists per-user external-provider linkage.
type ConnectionRepo struct {
	db *sql.DB
}

// NewConnectionRepo builds a ConnectionRepo over an open connection pool.
func NewConnectionRepo(conn *sql.DB) *ConnectionRepo {
	return &ConnectionRepo{db: conn}
}

// Link upserts a login's connection to provider.
func (r *ConnectionRepo) Link(ctx context.Context, c Connection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (login, provider, external_id) VALUES ($1, $2, $3)
		ON CONFLICT (login, provider) DO UPDATE SET external_id = EXCLUDED.external_id`,
		c.Login, c.Provider, c.ExternalID)
	if err != nil {
		return fmt.Errorf("db: link connection %s/%s: %w", c.Login, c.Provider, err)
	}
	return nil
}

// Lookup returns login's connection to provider, if any.
func (r *ConnectionRepo) Lookup(ctx context.Context, login, provider string) (Connection, bool, error) {
	c := Connection{Login: login, Provider: provider}
	row := r.db.QueryRowContext(ctx,
		`SELECT external_id FROM connections WHERE login = $1 AND provider = $2`, login, provider)
	switch err := row.Scan(&c.ExternalID); {
	case err == sql.ErrNoRows:
		return Connection{}, false, nil
	case err != nil:
		return Connection{}, false, fmt.Errorf("db: lookup connection %s/%s: %w", login, provider, err)
	}
	return c, true, nil
}

// Unlink removes a login's connection to provider.
func (r *ConnectionRepo) Unlink(ctx context.Context, login, provider string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE login = $1 AND provider = $2`, login, provider); err != nil {
		return fmt.Errorf("db: unlink connection %s/%s: %w", login, provider, err)
	}
	return nil
}
