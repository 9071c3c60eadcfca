// Package dispatch orchestrates one form submission: collect fields, resolve
// identity (degradable), fan the conversion out to every sink, and surface
// outcomes. Nothing here throws past the boundary; the submitting user's
// flow always completes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"convrelay/internal/audit"
	"convrelay/internal/event"
	"convrelay/internal/identity"
	"convrelay/internal/kv"
	"convrelay/internal/platform/metrics"
	"convrelay/internal/sink"
	"convrelay/internal/sink/vendors"
)

// ErrMissingRequiredField is returned (inside the Result) when a submission
// lacks its form id, conversion name, or email. The dispatch short-circuits
// before any sink is touched.
var ErrMissingRequiredField = errors.New("missing required field")

// State names the dispatcher's phases. PartiallyFailed is a completed state:
// failures are recorded, never propagated as fatal.
type State string

const (
	StateIdle              State = "idle"
	StateCollectingData    State = "collecting_data"
	StateResolvingIdentity State = "resolving_identity"
	StateDispatching       State = "dispatching"
	StateCompleted         State = "completed"
	StatePartiallyFailed   State = "partially_failed"
)

// Result is what one submission produces: the terminal state, the record
// dispatched (zero-valued on short-circuit), and every sink outcome.
type Result struct {
	State          State
	Record         event.Record
	ConversionName string
	Outcomes       []sink.Outcome
	// Err is non-nil only for the MissingRequiredField short-circuit.
	Err error
}

// Completed reports whether the flow ran to the end, partially failed or not.
func (r Result) Completed() bool {
	return r.State == StateCompleted || r.State == StatePartiallyFailed
}

// Dispatcher coordinates identity resolution and sink fan-out for form
// submissions.
type Dispatcher struct {
	resolver  *identity.Resolver
	registry  *sink.Registry
	scheduler *vendors.Scheduler
	// schedulerForms is the allow-set: only these form ids trigger the
	// scheduling side channel.
	schedulerForms map[string]struct{}
	store          kv.Store
	resolveTimeout time.Duration

	log     *slog.Logger
	audit   *audit.Log
	metrics *metrics.Metrics
}

// Config carries the dispatcher's collaborators.
type Config struct {
	Resolver       *identity.Resolver
	Registry       *sink.Registry
	Scheduler      *vendors.Scheduler
	SchedulerForms []string
	Store          kv.Store
	ResolveTimeout time.Duration
	Log            *slog.Logger
	Audit          *audit.Log
	Metrics        *metrics.Metrics
}

func New(cfg Config) *Dispatcher {
	allow := make(map[string]struct{}, len(cfg.SchedulerForms))
	for _, id := range cfg.SchedulerForms {
		allow[id] = struct{}{}
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = identity.DefaultCookieWait
	}
	return &Dispatcher{
		resolver:       cfg.Resolver,
		registry:       cfg.Registry,
		scheduler:      cfg.Scheduler,
		schedulerForms: allow,
		store:          cfg.Store,
		resolveTimeout: cfg.ResolveTimeout,
		log:            cfg.Log,
		audit:          cfg.Audit,
		metrics:        cfg.Metrics,
	}
}

// WarmUp starts one background identity resolution so a returning visitor is
// usually resolved before their first submit. Best-effort: failures are
// audit-logged only.
func (d *Dispatcher) WarmUp(ctx context.Context) {
	if _, err := d.resolver.Ensure(ctx); err != nil {
		d.audit.Errorf("identity warm-up: %v", err)
	}
}

// HandleSubmit processes one form submission end to end. It never panics and
// never returns an error past its boundary; everything the caller needs is
// in the Result.
func (d *Dispatcher) HandleSubmit(ctx context.Context, form map[string]any, formID, conversionName string) Result {
	d.metrics.SubmissionsTotal.Inc()
	d.audit.Logf("submission received for form %s", formID)

	// Identity resolution starts immediately and overlaps data collection;
	// it is bounded by its own timeout and a timeout degrades to an
	// identity-less dispatch instead of aborting.
	resolved := d.resolveBounded(ctx)

	// CollectingData
	fields := event.Flatten(form)
	email := fields["email"]

	if formID == "" || conversionName == "" || email == "" {
		d.metrics.SubmissionsShort.Inc()
		err := fmt.Errorf("%w: formId=%q conversionName=%q email=%q",
			ErrMissingRequiredField, formID, conversionName, email)
		d.audit.Errorf("%v", err)
		return Result{State: StateIdle, ConversionName: conversionName, Err: err}
	}

	// The submitted email doubles as the stored email hint, matching the
	// pre-resolution state a returning visitor would have.
	if err := d.store.Set(ctx, identity.KeyEmail, email); err != nil {
		d.audit.Errorf("persist email hint: %v", err)
	}

	// ResolvingIdentity
	id := <-resolved

	// Dispatching
	rec := event.NewRecord(formID, conversionName, email, id)
	d.audit.Logf("dispatching conversion %s for form %s", conversionName, formID)
	outcomes := d.registry.DispatchAll(ctx, rec)

	if _, allowed := d.schedulerForms[formID]; allowed {
		outcomes = append(outcomes, d.scheduler.Submit(ctx, fields))
	}

	state := StateCompleted
	for _, o := range outcomes {
		d.metrics.DispatchOutcomes.WithLabelValues(o.Sink, o.Op, string(o.Status)).Inc()
		if o.Failed() {
			state = StatePartiallyFailed
		}
	}
	d.audit.Logf("dispatch %s for form %s", state, formID)
	d.log.InfoContext(ctx, "dispatch finished",
		"form_id", formID,
		"conversion", conversionName,
		"state", string(state),
		"sinks", len(outcomes),
	)

	return Result{State: state, Record: rec, ConversionName: conversionName, Outcomes: outcomes}
}

// resolveBounded kicks off identity resolution concurrently and returns a
// channel that yields the identity, or nil after at most resolveTimeout.
// Failure and timeout both degrade to nil: availability over completeness.
func (d *Dispatcher) resolveBounded(ctx context.Context) <-chan *identity.Identity {
	out := make(chan *identity.Identity, 1)
	rctx, cancel := context.WithTimeout(ctx, d.resolveTimeout)
	go func() {
		defer cancel()
		id, err := d.resolver.Ensure(rctx)
		if err != nil {
			d.audit.Errorf("identity unavailable for this dispatch: %v", err)
			out <- nil
			return
		}
		out <- &id
	}()
	return out
}
