package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clefbot/clef/internal/player"
)

// QueueRepo persists the mixer's queue so it survives a process restart,
// implementing player.Persister directly.
type QueueRepo struct {
	db  *sql.DB
	ctx context.Context
}

// NewQueueRepo builds a QueueRepo over an open connection pool. The mixer's
// Persister interface is synchronous (it predates a context-aware
// contract, like chat.AliasStore), so ctx is fixed at construction time —
// callers that need a different context per call should use the
// context-aware methods directly instead of going through player.Persister.
func NewQueueRepo(ctx context.Context, conn *sql.DB) *QueueRepo {
	if ctx == nil {
		ctx = context.Background()
	}
	return &QueueRepo{db: conn, ctx: ctx}
}

// AppendQueueEntry implements player.Persister.
func (r *QueueRepo) AppendQueueEntry(entry player.QueueEntry) error {
	_, err := r.db.ExecContext(r.ctx, `
		INSERT INTO queue_entries (track_id, title, artists, playable, duration_ms, requested_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (track_id) DO UPDATE SET
			title = EXCLUDED.title, artists = EXCLUDED.artists, playable = EXCLUDED.playable,
			duration_ms = EXCLUDED.duration_ms, requested_by = EXCLUDED.requested_by, added_at = EXCLUDED.added_at`,
		entry.Item.TrackID.String(), entry.Item.Title, strings.Join(entry.Item.Artists, ","),
		entry.Item.Playable, entry.Item.Duration.Milliseconds(), entry.Item.RequestedBy, entry.AddedAt)
	if err != nil {
		return fmt.Errorf("db: append queue entry %s: %w", entry.Item.TrackID, err)
	}
	return nil
}

// RemoveQueueEntry implements player.Persister.
func (r *QueueRepo) RemoveQueueEntry(trackID player.TrackID) error {
	if _, err := r.db.ExecContext(r.ctx, `DELETE FROM queue_entries WHERE track_id = $1`, trackID.String()); err != nil {
		return fmt.Errorf("db: remove queue entry %s: %w", trackID, err)
	}
	return nil
}

// LoadQueue implements player.Persister.
func (r *QueueRepo) LoadQueue() ([]player.QueueEntry, error) {
	rows, err := r.db.QueryContext(r.ctx, `
		SELECT track_id, title, artists, playable, duration_ms, requested_by, added_at
		FROM queue_entries ORDER BY added_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("db: load queue: %w", err)
	}
	defer rows.Close()

	var out []player.QueueEntry
	for rows.Next() {
		var rawTrackID, title, artists, requestedBy string
		var playable bool
		var durationMs int64
		var addedAt time.Time
		if err := rows.Scan(&rawTrackID, &title, &artists, &playable, &durationMs, &requestedBy, &addedAt); err != nil {
			return nil, fmt.Errorf("db: scan queue entry: %w", err)
		}
		trackID, err := player.ParseTrackID(rawTrackID)
		if err != nil {
			return nil, fmt.Errorf("db: parse queue entry track id %q: %w", rawTrackID, err)
		}
		var artistList []string
		if artists != "" {
			artistList = strings.Split(artists, ",")
		}
		out = append(out, player.QueueEntry{
			Item: player.Item{
				TrackID:     trackID,
				Title:       title,
				Artists:     artistList,
				Playable:    playable,
				Duration:    time.Duration(durationMs) * time.Millisecond,
				RequestedBy: requestedBy,
			},
			AddedAt: addedAt,
		})
	}
	return out, rows.Err()
}
