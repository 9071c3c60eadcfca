package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sony/gobreaker"

	"convrelay/internal/audit"
	"convrelay/internal/event"
	"convrelay/internal/gate"
	"convrelay/internal/identity"
)

// Registry is the ordered set of sinks one event fans out to. Sinks are
// registered once at startup and live for the whole process.
type Registry struct {
	descs    []Descriptor
	breakers map[string]*gobreaker.CircuitBreaker
	log      *slog.Logger
	audit    *audit.Log
}

func NewRegistry(log *slog.Logger, auditLog *audit.Log, descs ...Descriptor) *Registry {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(descs))
	for _, d := range descs {
		breakers[d.Sink.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: d.Sink.Name(),
		})
	}
	return &Registry{descs: descs, breakers: breakers, log: log, audit: auditLog}
}

// Names returns the registered sink names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.descs))
	for i, d := range r.descs {
		names[i] = d.Sink.Name()
	}
	return names
}

// DispatchAll fans rec out to every sink concurrently. Invocations are
// issued in registration order but completions interleave arbitrarily; no
// sink's readiness wait, failure, or latency delays any other. The returned
// outcomes are grouped per sink in registration order.
func (r *Registry) DispatchAll(ctx context.Context, rec event.Record) []Outcome {
	results := make([][]Outcome, len(r.descs))
	var wg sync.WaitGroup
	for i, d := range r.descs {
		wg.Add(1)
		go func(i int, d Descriptor) {
			defer wg.Done()
			results[i] = r.dispatchOne(ctx, d, rec)
		}(i, d)
	}
	wg.Wait()

	var out []Outcome
	for _, group := range results {
		out = append(out, group...)
	}
	for _, o := range out {
		if o.Failed() {
			r.audit.Errorf("sink %s %s: %s (%s)", o.Sink, o.Op, o.Status, o.Detail)
		} else {
			r.audit.Logf("sink %s %s: %s", o.Sink, o.Op, o.Status)
		}
	}
	return out
}

// IdentifyAll pushes a resolved identity to every sink that supports
// identification, outside any dispatch. Used when identity resolves on its
// own (the warm-up path), so a returning visitor is identified before their
// first submit. Same gates, breakers and failure isolation as DispatchAll.
func (r *Registry) IdentifyAll(ctx context.Context, id identity.Identity) []Outcome {
	results := make([]Outcome, len(r.descs))
	ran := make([]bool, len(r.descs))
	var wg sync.WaitGroup
	for i, d := range r.descs {
		ident, ok := d.Sink.(Identifier)
		if !ok {
			continue
		}
		ran[i] = true
		wg.Add(1)
		go func(i int, d Descriptor, ident Identifier) {
			defer wg.Done()
			results[i] = r.run(ctx, d.Sink.Name(), OpIdentify, ident.IdentifyReady, d.IdentifyGate, func() error {
				return ident.Identify(ctx, id)
			})
		}(i, d, ident)
	}
	wg.Wait()

	out := make([]Outcome, 0, len(r.descs))
	for i, o := range results {
		if !ran[i] {
			continue
		}
		out = append(out, o)
		if o.Failed() {
			r.audit.Errorf("sink %s %s: %s (%s)", o.Sink, o.Op, o.Status, o.Detail)
		} else {
			r.audit.Logf("sink %s %s: %s", o.Sink, o.Op, o.Status)
		}
	}
	return out
}

func (r *Registry) dispatchOne(ctx context.Context, d Descriptor, rec event.Record) []Outcome {
	name := d.Sink.Name()
	outcomes := []Outcome{r.run(ctx, name, OpNotify, d.Sink.NotifyReady, d.NotifyGate, func() error {
		return d.Sink.Notify(ctx, rec)
	})}

	ident, ok := d.Sink.(Identifier)
	if !ok {
		return outcomes
	}
	if rec.Identity == nil {
		outcomes = append(outcomes, Outcome{
			Sink:   name,
			Op:     OpIdentify,
			Status: StatusSkipped,
			Detail: "identity unresolved",
		})
		return outcomes
	}
	id := *rec.Identity
	outcomes = append(outcomes, r.run(ctx, name, OpIdentify, ident.IdentifyReady, d.IdentifyGate, func() error {
		return ident.Identify(ctx, id)
	}))
	return outcomes
}

// run performs one gated sink call inside that sink's own failure boundary:
// readiness timeout, call error, panic, and an open breaker each produce an
// outcome and nothing else.
func (r *Registry) run(ctx context.Context, name, op string, probe func() bool, gcfg gate.Config, call func() error) Outcome {
	if gcfg.Name == "" {
		gcfg.Name = name + "." + op
	}
	if err := gate.Await(ctx, probe, gcfg); err != nil {
		status := StatusFailed
		if errors.Is(err, gate.ErrReadinessTimeout) {
			status = StatusTimedOut
		}
		return Outcome{Sink: name, Op: op, Status: status, Detail: err.Error()}
	}

	_, err := r.breakers[name].Execute(func() (any, error) {
		return nil, r.safeCall(call)
	})
	if err != nil {
		r.log.Warn("sink call failed", "sink", name, "op", op, "error", err)
		return Outcome{Sink: name, Op: op, Status: StatusFailed, Detail: err.Error()}
	}
	return Outcome{Sink: name, Op: op, Status: StatusSuccess}
}

func (r *Registry) safeCall(call func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panicked: %v", p)
		}
	}()
	return call()
}
