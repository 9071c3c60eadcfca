package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"convrelay/internal/kv"
)

// Timestamp layout for occurrence entries: ISO-8601 date and time, second
// precision, UTC.
const stampLayout = "2006-01-02 15:04:05"

// Occurrences records durable, append-only event occurrence stamps: each Mark
// appends one timestamp to a comma-joined list under the event's own key.
// Existing entries are never overwritten.
type Occurrences struct {
	store kv.Store
	clock func() time.Time
}

func NewOccurrences(store kv.Store) *Occurrences {
	return &Occurrences{store: store, clock: time.Now}
}

// Mark appends the current timestamp to the list stored under name.
func (o *Occurrences) Mark(ctx context.Context, name string) error {
	stamp := o.clock().UTC().Format(stampLayout)

	existing, err := o.store.Get(ctx, name)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("read occurrence key %s: %w", name, err)
	}

	value := stamp
	if existing != "" {
		value = existing + ", " + stamp
	}
	if err := o.store.Set(ctx, name, value); err != nil {
		return fmt.Errorf("append occurrence key %s: %w", name, err)
	}
	return nil
}

// List returns the stamps recorded under name, or nil when none exist.
func (o *Occurrences) List(ctx context.Context, name string) (string, error) {
	v, err := o.store.Get(ctx, name)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	return v, err
}
