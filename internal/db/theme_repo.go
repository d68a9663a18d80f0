package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Theme binds a channel key to a track clip played on demand (e.g. entrance
// themes).
type Theme struct {
	Channel  string
	Key      string
	TrackID  string
	StartMs  int64
	EndMs    int64
	Disabled bool
}

// ThemeRepo persists per-channel theme-song bindings.
type ThemeRepo struct {
	db *sql.DB
}

// NewThemeRepo builds a ThemeRepo over an open connection pool.
func NewThemeRepo(conn *sql.DB) *ThemeRepo {
	return &ThemeRepo{db: conn}
}

// Lookup returns the theme bound to (channel, key), ignoring disabled
// entries.
func (r *ThemeRepo) Lookup(ctx context.Context, channel, key string) (Theme, bool, error) {
	t := Theme{Channel: channel, Key: key}
	row := r.db.QueryRowContext(ctx,
		`SELECT track_id, start_ms, end_ms, disabled FROM themes WHERE channel = $1 AND key = $2 AND disabled = false`,
		channel, key)
	switch err := row.Scan(&t.TrackID, &t.StartMs, &t.EndMs, &t.Disabled); {
	case errors.Is(err, sql.ErrNoRows):
		return Theme{}, false, nil
	case err != nil:
		return Theme{}, false, fmt.Errorf("db: lookup theme %s/%s: %w", channel, key, err)
	}
	return t, true, nil
}

// Set upserts a theme binding.
func (r *ThemeRepo) Set(ctx context.Context, t Theme) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO themes (channel, key, track_id, start_ms, end_ms, disabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel, key) DO UPDATE SET
			track_id = EXCLUDED.track_id, start_ms = EXCLUDED.start_ms,
			end_ms = EXCLUDED.end_ms, disabled = EXCLUDED.disabled`,
		t.Channel, t.Key, t.TrackID, t.StartMs, t.EndMs, t.Disabled)
	if err != nil {
		return fmt.Errorf("db: set theme %s/%s: %w", t.Channel, t.Key, err)
	}
	return nil
}

// Delete removes a theme binding.
func (r *ThemeRepo) Delete(ctx context.Context, channel, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM themes WHERE channel = $1 AND key = $2`, channel, key); err != nil {
		return fmt.Errorf("db: delete theme %s/%s: %w", channel, key, err)
	}
	return nil
}
