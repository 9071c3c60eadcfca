// Package audit keeps the best-effort, append-only record of what the relay
// did and what failed. It is observability only: nothing reads it to make
// control decisions.
package audit

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one appended log line.
type Entry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

const (
	levelInfo  = "info"
	levelError = "error"
)

// Log is the process-wide append-only log, exposed read-only over HTTP for
// debugging. Entries are never mutated or removed.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	clock   func() time.Time
}

func NewLog() *Log {
	return &Log{clock: time.Now}
}

func (l *Log) Logf(format string, args ...any) {
	l.append(levelInfo, format, args...)
}

func (l *Log) Errorf(format string, args ...any) {
	l.append(levelError, format, args...)
}

func (l *Log) append(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		At:      l.clock().UTC(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

// Snapshot returns a copy of all entries so readers cannot observe or disturb
// later appends.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries appended so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
