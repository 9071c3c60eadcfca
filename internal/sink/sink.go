// Package sink defines the notification targets a conversion event fans out
// to, and the registry that dispatches to all of them with per-sink failure
// isolation.
package sink

import (
	"context"

	"convrelay/internal/event"
	"convrelay/internal/gate"
	"convrelay/internal/identity"
)

// Status classifies one sink operation's outcome.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusSkipped  Status = "skipped"
	StatusTimedOut Status = "timed_out"
	StatusFailed   Status = "failed"
)

// Operations a sink exposes.
const (
	OpNotify   = "notify"
	OpIdentify = "identify"
)

// Outcome records the result of one sink operation for one event. Outcomes
// are returned to the caller and appended to the audit log, never mutated.
type Outcome struct {
	Sink   string `json:"sink"`
	Op     string `json:"op"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Failed reports whether this outcome should downgrade a dispatch to
// partially failed. Skips are deliberate, not failures.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed || o.Status == StatusTimedOut
}

// Sink is one independent notification target. NotifyReady is the readiness
// probe the registry polls before calling Notify; vendor clients initialize
// asynchronously, so not-ready is an expected transient state.
type Sink interface {
	Name() string
	NotifyReady() bool
	Notify(ctx context.Context, rec event.Record) error
}

// Identifier is implemented by sinks that can associate the anonymous
// session with a resolved identity. Identify may require a different (later
// arriving) vendor capability than Notify, hence its own probe.
type Identifier interface {
	IdentifyReady() bool
	Identify(ctx context.Context, id identity.Identity) error
}

// Descriptor pairs a sink with its readiness budgets. Budgets are per sink:
// critical sinks wait longer than best-effort ones.
type Descriptor struct {
	Sink         Sink
	NotifyGate   gate.Config
	IdentifyGate gate.Config
}
