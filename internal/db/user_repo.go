package db

import (
	"context"
	"database/sql"
	"fmt"
)

// UserRepo persists known chat users, independent of their live role
// (moderator/VIP), which is refreshed separately by the Role Store.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo builds a UserRepo over an open connection pool.
func NewUserRepo(conn *sql.DB) *UserRepo {
	return &UserRepo{db: conn}
}

// Touch records login as seen, creating the row on first sight.
func (r *UserRepo) Touch(ctx context.Context, login, display string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (login, display) VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE SET display = EXCLUDED.display`,
		login, display)
	if err != nil {
		return fmt.Errorf("db: touch user %s: %w", login, err)
	}
	return nil
}

// Exists reports whether login has ever been recorded.
func (r *UserRepo) Exists(ctx context.Context, login string) (bool, error) {
	var exists bool
	row := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`, login)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("db: check user %s: %w", login, err)
	}
	return exists, nil
}
