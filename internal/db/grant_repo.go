package db

import (
	"context"
	"database/sql"
	"fmt"
)

// GrantRepo persists the scope→role bindings that decide which roles a
// command scope requirement accepts.
type GrantRepo struct {
	db *sql.DB
}

// NewGrantRepo builds a GrantRepo over an open connection pool.
func NewGrantRepo(conn *sql.DB) *GrantRepo {
	return &GrantRepo{db: conn}
}

// RolesForScope returns every role granted a scope.
func (r *GrantRepo) RolesForScope(ctx context.Context, scope string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role FROM grants WHERE scope = $1`, scope)
	if err != nil {
		return nil, fmt.Errorf("db: roles for scope %s: %w", scope, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("db: scan grant: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Grant binds role to scope.
func (r *GrantRepo) Grant(ctx context.Context, scope, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO grants (scope, role) VALUES ($1, $2)
		ON CONFLICT (scope, role) DO NOTHING`,
		scope, role)
	if err != nil {
		return fmt.Errorf("db: grant %s to %s: %w", scope, role, err)
	}
	return nil
}

// Revoke removes a scope/role binding.
func (r *GrantRepo) Revoke(ctx context.Context, scope, role string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE scope = $1 AND role = $2`, scope, role); err != nil {
		return fmt.Errorf("db: revoke %s from %s: %w", scope, role, err)
	}
	return nil
}
