package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Promotion is a periodically-announced templated message.
type Promotion struct {
	Channel   string
	Key       string
	Template  string
	Frequency int64
	Disabled  bool
}

// PromotionRepo persists per-channel promotion announcements.
type PromotionRepo struct {
	db *sql.DB
}

// NewPromotionRepo builds a PromotionRepo over an open connection pool.
func NewPromotionRepo(conn *sql.DB) *PromotionRepo {
	return &PromotionRepo{db: conn}
}

// ListEnabled returns every non-disabled promotion for channel.
func (r *PromotionRepo) ListEnabled(ctx context.Context, channel string) ([]Promotion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel, key, template, frequency, disabled FROM promotions WHERE channel = $1 AND disabled = false`,
		channel)
	if err != nil {
		return nil, fmt.Errorf("db: list promotions for %s: %w", channel, err)
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.Channel, &p.Key, &p.Template, &p.Frequency, &p.Disabled); err != nil {
			return nil, fmt.Errorf("db: scan promotion: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Set upserts a promotion.
func (r *PromotionRepo) Set(ctx context.Context, p Promotion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO promotions (channel, key, template, frequency, disabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel, key) DO UPDATE SET
			template = EXCLUDED.template, frequency = EXCLUDED.frequency, disabled = EXCLUDED.disabled`,
		p.Channel, p.Key, p.Template, p.Frequency, p.Disabled)
	if err != nil {
		return fmt.Errorf("db: set promotion %s/%s: %w", p.Channel, p.Key, err)
	}
	return nil
}

// Delete removes a promotion.
func (r *PromotionRepo) Delete(ctx context.Context, channel, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM promotions WHERE channel = $1 AND key = $2`, channel, key); err != nil {
		return fmt.Errorf("db: delete promotion %s/%s: %w", channel, key, err)
	}
	return nil
}
