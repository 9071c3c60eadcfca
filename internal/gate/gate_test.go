package gate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwait_ReadyImmediately(t *testing.T) {
	calls := 0
	err := Await(context.Background(), func() bool {
		calls++
		return true
	}, Config{Name: "pulse", MaxAttempts: 3, Interval: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "first probe should fire before any timer tick")
}

func TestAwait_ReadyAfterRetries(t *testing.T) {
	calls := 0
	err := Await(context.Background(), func() bool {
		calls++
		return calls >= 4
	}, Config{Name: "morph", MaxAttempts: 10, Interval: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestAwait_BudgetExhausted(t *testing.T) {
	calls := 0
	err := Await(context.Background(), func() bool {
		calls++
		return false
	}, Config{Name: "pulse", MaxAttempts: 5, Interval: time.Millisecond})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadinessTimeout)
	assert.Contains(t, err.Error(), "pulse")
	assert.Equal(t, 5, calls)
}

func TestAwait_NilProbeTimesOut(t *testing.T) {
	err := Await(context.Background(), nil, Config{Name: "x", MaxAttempts: 2, Interval: time.Millisecond})
	assert.ErrorIs(t, err, ErrReadinessTimeout)
}

func TestAwait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Await(ctx, func() bool { return false }, Config{Name: "x", MaxAttempts: 100, Interval: time.Millisecond})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_UnboundedResolvesWhenProbeFlips(t *testing.T) {
	var ready atomic.Bool
	go func() {
		time.Sleep(5 * time.Millisecond)
		ready.Store(true)
	}()

	err := Await(context.Background(), ready.Load, Config{Name: "bus", Interval: time.Millisecond})
	assert.NoError(t, err)
}

func TestAwait_DefaultIntervalApplied(t *testing.T) {
	// Interval zero must not spin: a two-attempt budget with the 100ms default
	// takes at least one tick to fail.
	start := time.Now()
	err := Await(context.Background(), func() bool { return false }, Config{Name: "x", MaxAttempts: 2})
	require.ErrorIs(t, err, ErrReadinessTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
