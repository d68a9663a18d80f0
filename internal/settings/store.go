package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/logging"
)

// Repo is the persistence boundary a Store writes through; it is satisfied
// by the database layer's settings repository, or by any fake in tests.
type Repo interface {
	Load(ctx context.Context) (map[string]json.RawMessage, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
}

// ChangeKind distinguishes a committed write from a clear on a Change
// notification.
type ChangeKind int

const (
	ChangeSet ChangeKind = iota
	ChangeClear
)

// Change is broadcast on a key's bus on every commit. Value carries the new
// JSON value for ChangeSet, or the schema default (possibly absent, for an
// optional field) for ChangeClear.
type Change struct {
	Kind  ChangeKind
	Value json.RawMessage
}

// Store holds the current value of every settings key in memory, backed by
// Repo, broadcasting every committed change on a per-key bus.Bus.
type Store struct {
	mu     sync.RWMutex
	schema Schema
	repo   Repo
	values map[string]json.RawMessage
	buses  map[string]*bus.Bus[Change]
	log    *logging.Logger
}

// Open loads the current values from repo and constructs a Store bound to
// schema. Schema load failure (a missing or malformed document) is the
// caller's responsibility to treat as fatal at startup, per the contract's
// "schema load failure is fatal" rule.
func Open(ctx context.Context, schema Schema, repo Repo, log *logging.Logger) (*Store, error) {
	values, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	if log == nil {
		log = logging.NewTestLogger()
	}
	return &Store{
		schema: schema,
		repo:   repo,
		values: values,
		buses:  make(map[string]*bus.Bus[Change]),
		log:    log,
	}, nil
}

func (s *Store) fieldFor(key string) (FieldSchema, bool) {
	f, ok := s.schema[key]
	return f, ok
}

// busFor returns the bus for key, creating it on first use. Callers must
// already hold s.mu (either lock).
func (s *Store) busFor(key string) *bus.Bus[Change] {
	b, ok := s.buses[key]
	if !ok {
		b = bus.New[Change]()
		s.buses[key] = b
	}
	return b
}

func checkType(t ValueType, raw json.RawMessage) error {
	switch t {
	case TypeString:
		var v string
		return decodeOrExpectedType(raw, &v)
	case TypeInt:
		var v int64
		return decodeOrExpectedType(raw, &v)
	case TypeFloat:
		var v float64
		return decodeOrExpectedType(raw, &v)
	case TypeBool:
		var v bool
		return decodeOrExpectedType(raw, &v)
	case TypeJSON:
		var v any
		return decodeOrExpectedType(raw, &v)
	default:
		return fmt.Errorf("%w: unknown schema type %q", ErrExpectedType, t)
	}
}

func decodeOrExpectedType(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return ErrExpectedType
	}
	return nil
}

// Get decodes the current value of key into T. The second return is false
// if the key has never been set (and T's zero value is returned).
func Get[T any](s *Store, key string) (T, bool, error) {
	var zero T
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("%w: key %s", ErrExpectedType, key)
	}
	return v, true, nil
}

// Set validates value against key's registered schema, persists it through
// Repo, commits it in memory, and broadcasts a ChangeSet notification.
func Set[T any](ctx context.Context, s *Store, key string, value T) error {
	field, ok := s.fieldFor(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: marshal %s: %w", key, err)
	}
	if err := checkType(field.Type, raw); err != nil {
		return fmt.Errorf("%w: key %s", err, key)
	}
	if err := s.repo.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("settings: persist %s: %w", key, err)
	}

	s.mu.Lock()
	s.values[key] = raw
	b := s.busFor(key)
	s.mu.Unlock()

	b.Send(Change{Kind: ChangeSet, Value: raw})
	return nil
}

// Clear removes key's stored value, persists the deletion, and broadcasts a
// ChangeClear notification carrying the schema default (absent for an
// optional field).
func (s *Store) Clear(ctx context.Context, key string) error {
	field, ok := s.fieldFor(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("settings: clear %s: %w", key, err)
	}

	s.mu.Lock()
	delete(s.values, key)
	b := s.busFor(key)
	s.mu.Unlock()

	var def json.RawMessage
	if !field.Optional {
		def = defaultValueFor(field.Type)
	}
	b.Send(Change{Kind: ChangeClear, Value: def})
	return nil
}

func defaultValueFor(t ValueType) json.RawMessage {
	switch t {
	case TypeString:
		return json.RawMessage(`""`)
	case TypeInt:
		return json.RawMessage(`0`)
	case TypeFloat:
		return json.RawMessage(`0`)
	case TypeBool:
		return json.RawMessage(`false`)
	default:
		return json.RawMessage(`null`)
	}
}

// ListByPrefix returns every currently-set key beginning with prefix.
func (s *Store) ListByPrefix(prefix string) map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage)
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// Stream subscribes to future Change notifications for key and returns the
// subscription alongside the current value (if any) so a caller always
// observes a consistent starting point.
func (s *Store) Stream(key string) (*bus.Reader[Change], json.RawMessage, bool) {
	s.mu.Lock()
	b := s.busFor(key)
	raw, ok := s.values[key]
	reader := b.Subscribe(8)
	s.mu.Unlock()
	return reader, raw, ok
}
