package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clefbot/clef/internal/chat"
)

// CommandRepo persists per-channel templated commands.
type CommandRepo struct {
	db *sql.DB
}

// NewCommandRepo builds a CommandRepo over an open connection pool.
func NewCommandRepo(conn *sql.DB) *CommandRepo {
	return &CommandRepo{db: conn}
}

// Lookup returns the stored command for (channel, key), ignoring disabled
// entries.
func (r *CommandRepo) Lookup(ctx context.Context, channel, key string) (chat.StoredCommand, bool, error) {
	var cmd chat.StoredCommand
	row := r.db.QueryRowContext(ctx,
		`SELECT key, template, count FROM commands WHERE channel = $1 AND key = $2 AND disabled = false`,
		channel, key)
	switch err := row.Scan(&cmd.Name, &cmd.Template, &cmd.Count); {
	case errors.Is(err, sql.ErrNoRows):
		return chat.StoredCommand{}, false, nil
	case err != nil:
		return chat.StoredCommand{}, false, fmt.Errorf("db: lookup command %s/%s: %w", channel, key, err)
	}
	cmd.CountEnabled = true
	return cmd, true, nil
}

// IncrementCount atomically increments and returns a command's usage count.
func (r *CommandRepo) IncrementCount(ctx context.Context, channel, key string) (int, error) {
	var count int
	row := r.db.QueryRowContext(ctx, `
		UPDATE commands SET count = count + 1
		WHERE channel = $1 AND key = $2
		RETURNING count`,
		channel, key)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("db: increment command %s/%s: %w", channel, key, err)
	}
	return count, nil
}

// Set upserts a command template.
func (r *CommandRepo) Set(ctx context.Context, channel, key, template, group string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO commands (channel, key, template, "group") VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel, key) DO UPDATE SET template = EXCLUDED.template, "group" = EXCLUDED."group"`,
		channel, key, template, group)
	if err != nil {
		return fmt.Errorf("db: set command %s/%s: %w", channel, key, err)
	}
	return nil
}

// Delete removes a command.
func (r *CommandRepo) Delete(ctx context.Context, channel, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM commands WHERE channel = $1 AND key = $2`, channel, key); err != nil {
		return fmt.Errorf("db: delete command %s/%s: %w", channel, key, err)
	}
	return nil
}

// ChatCommandDB adapts CommandRepo to internal/chat's CommandDB interface,
// the same context.Background() bridging ChatAliasStore uses.
type ChatCommandDB struct {
	repo *CommandRepo
}

// NewChatCommandDB wraps repo for use as a chat.CommandDB.
func NewChatCommandDB(repo *CommandRepo) *ChatCommandDB {
	return &ChatCommandDB{repo: repo}
}

// Lookup implements chat.CommandDB.
func (s *ChatCommandDB) Lookup(channel, name string) (chat.StoredCommand, bool) {
	cmd, ok, err := s.repo.Lookup(context.Background(), channel, name)
	if err != nil {
		return chat.StoredCommand{}, false
	}
	return cmd, ok
}

// IncrementCount implements chat.CommandDB.
func (s *ChatCommandDB) IncrementCount(channel, name string) (int, error) {
	return s.repo.IncrementCount(context.Background(), channel, name)
}
