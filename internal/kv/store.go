// Package kv defines the durable key-value store the relay persists visitor
// state in. It mirrors browser localStorage semantics: flat string keys, no
// expiry, survives restarts (in the redis flavor).
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value. Stores return it
// (optionally wrapped) so callers can distinguish absence from failure.
var ErrNotFound = errors.New("key not found")

// Store is the durable key-value contract.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetMulti writes all pairs as one operation so a reader never observes
	// a partial write of values that belong together.
	SetMulti(ctx context.Context, pairs map[string]string) error
}
