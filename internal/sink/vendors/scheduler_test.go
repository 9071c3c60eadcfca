package vendors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrelay/internal/audit"
	"convrelay/internal/gate"
	"convrelay/internal/kv"
	"convrelay/internal/sink"
	"convrelay/internal/vendorsdk"
)

type fakeSchedulerClient struct {
	submitted []SubmitRequest
	err       error
	book      bool
	close     bool
}

func (c *fakeSchedulerClient) Submit(_ context.Context, tenant, router string, req SubmitRequest) error {
	c.submitted = append(c.submitted, req)
	if c.err != nil {
		return c.err
	}
	if c.book && req.OnBookingSuccess != nil {
		req.OnBookingSuccess()
	}
	if c.close && req.OnClose != nil {
		req.OnClose()
	}
	return nil
}

func newScheduler(reg *vendorsdk.Registry, store kv.Store) *Scheduler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(
		reg,
		gate.Config{MaxAttempts: 5, Interval: time.Millisecond},
		"omnipresent", "book_a_call",
		audit.NewOccurrences(store),
		NewPulse(reg),
		audit.NewLog(),
		log,
	)
}

func TestScheduler_SubmitRoutesLead(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	client := &fakeSchedulerClient{}
	reg.Register(SchedulerName, client)

	s := newScheduler(reg, kv.NewMemoryStore())
	lead := map[string]string{"email": "a@example.com", "country": "DE"}
	outcome := s.Submit(context.Background(), lead)

	assert.Equal(t, sink.StatusSuccess, outcome.Status)
	require.Len(t, client.submitted, 1)
	assert.True(t, client.submitted[0].Map)
	assert.Equal(t, lead, client.submitted[0].Lead)
}

func TestScheduler_WidgetNeverReady(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	s := newScheduler(reg, kv.NewMemoryStore())

	outcome := s.Submit(context.Background(), map[string]string{"email": "a@example.com"})

	assert.Equal(t, sink.StatusTimedOut, outcome.Status)
	assert.Contains(t, outcome.Detail, "readiness timeout")
}

func TestScheduler_SubmitFailureContained(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	reg.Register(SchedulerName, &fakeSchedulerClient{err: errors.New("router rejected lead")})

	s := newScheduler(reg, kv.NewMemoryStore())
	outcome := s.Submit(context.Background(), map[string]string{"email": "a@example.com"})

	assert.Equal(t, sink.StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Detail, "router rejected lead")
}

func TestScheduler_BookingSuccessAppendsOccurrence(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	reg.Register(SchedulerName, &fakeSchedulerClient{book: true})
	store := kv.NewMemoryStore()

	// Seed an existing stamp: a new booking must append, never replace.
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyBookingSuccess, "2024-03-01 10:30:00"))

	s := newScheduler(reg, store)
	outcome := s.Submit(ctx, map[string]string{"email": "a@example.com"})
	require.Equal(t, sink.StatusSuccess, outcome.Status)

	v, err := store.Get(ctx, KeyBookingSuccess)
	require.NoError(t, err)
	assert.Contains(t, v, "2024-03-01 10:30:00, ", "existing stamps preserved")
}

func TestScheduler_CloseCallbackMarksDialogClosed(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	reg.Register(SchedulerName, &fakeSchedulerClient{close: true})
	store := kv.NewMemoryStore()

	s := newScheduler(reg, store)
	s.Submit(context.Background(), map[string]string{"email": "a@example.com"})

	v, err := store.Get(context.Background(), KeyDialogClosed)
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}
