package settings

import "errors"

// ErrExpectedType is returned by Set when value does not decode as the
// schema's declared type for the key.
var ErrExpectedType = errors.New("settings: value does not match schema type")

// ErrUnknownKey is returned by Set/Clear for a key absent from the loaded
// schema.
var ErrUnknownKey = errors.New("settings: key not present in schema")

// ErrNoTargetForSchema is returned by a migration whose destination key has
// no registered schema entry.
var ErrNoTargetForSchema = errors.New("settings: migration destination has no schema")
