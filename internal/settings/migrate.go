package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/clefbot/clef/internal/logging"
)

// Migration moves one settings key (or, if Prefix is set, every key under
// From) to a new location at startup, run once per process.
type Migration struct {
	From   string
	To     string
	Prefix bool
}

// ApplyMigrations runs every migration in order. A migration whose
// destination key has no schema entry fails the whole run with
// ErrNoTargetForSchema; an incompatible source value is cleared with a
// warning rather than guessed at, per the contract's "no guessing of
// types" rule.
func (s *Store) ApplyMigrations(ctx context.Context, migrations []Migration) error {
	for _, m := range migrations {
		if _, ok := s.fieldFor(m.To); !ok && !m.Prefix {
			return fmt.Errorf("%w: %s", ErrNoTargetForSchema, m.To)
		}
		var err error
		if m.Prefix {
			err = s.migratePrefix(ctx, m)
		} else {
			err = s.migrateOne(ctx, m.From, m.To)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrateOne(ctx context.Context, from, to string) error {
	destField, ok := s.fieldFor(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTargetForSchema, to)
	}

	s.mu.RLock()
	raw, exists := s.values[from]
	_, destSet := s.values[to]
	s.mu.RUnlock()
	if !exists || destSet {
		return nil
	}

	if err := checkType(destField.Type, raw); err != nil {
		s.log.Warn("settings migration value incompatible with destination schema, clearing source",
			logging.String("from", from), logging.String("to", to))
		return s.Clear(ctx, from)
	}

	if err := s.repo.Put(ctx, to, raw); err != nil {
		return fmt.Errorf("settings: migrate %s -> %s: %w", from, to, err)
	}
	if err := s.repo.Delete(ctx, from); err != nil {
		return fmt.Errorf("settings: migrate %s -> %s: %w", from, to, err)
	}

	s.mu.Lock()
	s.values[to] = raw
	delete(s.values, from)
	s.mu.Unlock()
	return nil
}

func (s *Store) migratePrefix(ctx context.Context, m Migration) error {
	s.mu.RLock()
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, m.From) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	for _, k := range keys {
		suffix := strings.TrimPrefix(k, m.From)
		if err := s.migrateOne(ctx, k, m.To+suffix); err != nil {
			return err
		}
	}
	return nil
}
