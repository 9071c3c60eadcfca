package vendors

import (
	"context"
	"errors"
	"log/slog"

	"convrelay/internal/audit"
	"convrelay/internal/gate"
	"convrelay/internal/sink"
	"convrelay/internal/vendorsdk"
)

// SchedulerName is the registry key for the scheduling widget client.
const SchedulerName = "scheduler"

// Occurrence keys the scheduler callbacks append timestamps to.
const (
	KeyBookingSuccess = "widget.onBookingSuccess"
	KeyDialogClosed   = "widget.onClose"
)

// SubmitRequest is the scheduling widget's submit payload: the lead's form
// fields plus completion callbacks the widget fires.
type SubmitRequest struct {
	Map              bool
	Lead             map[string]string
	OnBookingSuccess func()
	OnClose          func()
}

// SchedulerClient is the capability surface of the scheduling widget vendor.
type SchedulerClient interface {
	Submit(ctx context.Context, tenant, router string, req SubmitRequest) error
}

// Scheduler is the conditional side-channel sink: the dispatcher invokes it
// only for forms in the configured allow-set, and its completion callbacks
// append durable occurrence stamps.
type Scheduler struct {
	reg         *vendorsdk.Registry
	ready       func() bool
	gate        gate.Config
	tenant      string
	router      string
	occurrences *audit.Occurrences
	tracker     *Pulse
	audit       *audit.Log
	log         *slog.Logger
}

func NewScheduler(reg *vendorsdk.Registry, gcfg gate.Config, tenant, router string, occ *audit.Occurrences, tracker *Pulse, auditLog *audit.Log, log *slog.Logger) *Scheduler {
	if gcfg.Name == "" {
		gcfg.Name = SchedulerName
	}
	return &Scheduler{
		reg: reg,
		ready: reg.Probe(SchedulerName, func(c any) bool {
			_, ok := c.(SchedulerClient)
			return ok
		}),
		gate:        gcfg,
		tenant:      tenant,
		router:      router,
		occurrences: occ,
		tracker:     tracker,
		audit:       auditLog,
		log:         log,
	}
}

func (s *Scheduler) client() (SchedulerClient, bool) {
	c, ok := s.reg.Lookup(SchedulerName)
	if !ok {
		return nil, false
	}
	sc, ok := c.(SchedulerClient)
	return sc, ok
}

// Submit routes the lead through the scheduling widget. The widget's own
// readiness wait, call failure, and callback failures are all contained
// here; the caller only sees an outcome.
func (s *Scheduler) Submit(ctx context.Context, lead map[string]string) sink.Outcome {
	if err := gate.Await(ctx, s.ready, s.gate); err != nil {
		status := sink.StatusFailed
		if errors.Is(err, gate.ErrReadinessTimeout) {
			status = sink.StatusTimedOut
		}
		s.audit.Errorf("scheduler widget unavailable: %v", err)
		return sink.Outcome{Sink: SchedulerName, Op: sink.OpNotify, Status: status, Detail: err.Error()}
	}

	c, _ := s.client()
	err := c.Submit(ctx, s.tenant, s.router, SubmitRequest{
		Map:              true,
		Lead:             lead,
		OnBookingSuccess: func() { s.completion(ctx, "Booking Success", KeyBookingSuccess) },
		OnClose:          func() { s.completion(ctx, "Dialog Closed", KeyDialogClosed) },
	})
	if err != nil {
		s.audit.Errorf("scheduler submission failed: %v", err)
		return sink.Outcome{Sink: SchedulerName, Op: sink.OpNotify, Status: sink.StatusFailed, Detail: err.Error()}
	}
	s.audit.Logf("scheduler form submitted")
	return sink.Outcome{Sink: SchedulerName, Op: sink.OpNotify, Status: sink.StatusSuccess}
}

// completion handles one widget callback: a best-effort track event plus a
// durable occurrence stamp. Neither failure propagates.
func (s *Scheduler) completion(ctx context.Context, label, key string) {
	s.audit.Logf("scheduler event: %s", label)
	if err := s.tracker.Track(ctx, "Scheduler Event", map[string]string{"event": label}); err != nil {
		s.log.Warn("scheduler completion track failed", "event", label, "error", err)
	}
	if err := s.occurrences.Mark(ctx, key); err != nil {
		s.audit.Errorf("recording %s occurrence: %v", key, err)
	}
}
