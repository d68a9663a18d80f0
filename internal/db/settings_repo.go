package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SettingsRepo persists settings.Store's (key, json-value) pairs, and
// implements settings.Repo directly so a *settings.Store can be opened
// straight against Postgres.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo builds a SettingsRepo over an open connection pool.
func NewSettingsRepo(conn *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: conn}
}

// Load reads every persisted setting.
func (r *SettingsRepo) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("db: load settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("db: scan setting: %w", err)
		}
		out[key] = json.RawMessage(raw)
	}
	return out, rows.Err()
}

// Put upserts a single setting value.
func (r *SettingsRepo) Put(ctx context.Context, key string, value json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, []byte(value))
	if err != nil {
		return fmt.Errorf("db: put setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a setting, reverting it to its schema default.
func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("db: delete setting %s: %w", key, err)
	}
	return nil
}
