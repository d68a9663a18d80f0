package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SongRecord is one row of the songs table: a track played and who
// requested it.
type SongRecord struct {
	TrackID string
	AddedAt time.Time
	User    string
}

// SongsRepo persists the history of tracks played, used to enforce
// duplicate-request policy and to answer "recently played" queries.
type SongsRepo struct {
	db *sql.DB
}

// NewSongsRepo builds a SongsRepo over an open connection pool.
func NewSongsRepo(conn *sql.DB) *SongsRepo {
	return &SongsRepo{db: conn}
}

// Record upserts a play record for trackID, bumping added_at to now.
func (r *SongsRepo) Record(ctx context.Context, trackID, user string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO songs (track_id, added_at, user_login) VALUES ($1, now(), $2)
		ON CONFLICT (track_id) DO UPDATE SET added_at = now(), user_login = EXCLUDED.user_login`,
		trackID, user)
	if err != nil {
		return fmt.Errorf("db: record song %s: %w", trackID, err)
	}
	return nil
}

// RecentlyPlayed returns the most recently recorded tracks, newest first.
func (r *SongsRepo) RecentlyPlayed(ctx context.Context, limit int) ([]SongRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT track_id, added_at, user_login FROM songs ORDER BY added_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: recently played: %w", err)
	}
	defer rows.Close()

	var out []SongRecord
	for rows.Next() {
		var rec SongRecord
		if err := rows.Scan(&rec.TrackID, &rec.AddedAt, &rec.User); err != nil {
			return nil, fmt.Errorf("db: scan song: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PlayedSince reports whether trackID was played at or after since, used
// for duplicate-request policy.
func (r *SongsRepo) PlayedSince(ctx context.Context, trackID string, since time.Time) (bool, error) {
	var addedAt time.Time
	row := r.db.QueryRowContext(ctx, `SELECT added_at FROM songs WHERE track_id = $1`, trackID)
	switch err := row.Scan(&addedAt); {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("db: played since %s: %w", trackID, err)
	}
	return !addedAt.Before(since), nil
}
