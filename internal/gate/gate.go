// Package gate implements bounded-retry readiness waits for external
// dependencies that initialize asynchronously. Every wait that gates a
// decision carries an attempt budget so a missing dependency surfaces as a
// timeout instead of a silent stall.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReadinessTimeout is returned when the attempt budget runs out before the
// probe reports ready. Callers match it with errors.Is.
var ErrReadinessTimeout = errors.New("readiness timeout")

// DefaultInterval is the spacing between probe attempts when a Config leaves
// Interval unset.
const DefaultInterval = 100 * time.Millisecond

// Config describes one readiness wait. MaxAttempts <= 0 means unbounded;
// unbounded waits are only appropriate for best-effort background work since
// a dependency that never arrives stalls the wait forever.
type Config struct {
	Name        string
	MaxAttempts int
	Interval    time.Duration
}

// Await polls probe until it returns true, the attempt budget is exhausted,
// or ctx is done. The first probe runs immediately; subsequent probes are
// timer-scheduled, never spun. A nil probe always times out on a bounded
// config.
func Await(ctx context.Context, probe func() bool, cfg Config) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	attempts := 0
	check := func() bool {
		attempts++
		return probe != nil && probe()
	}

	if check() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cfg.MaxAttempts > 0 && attempts >= cfg.MaxAttempts {
			return fmt.Errorf("gate %s: %w after %d attempts", cfg.Name, ErrReadinessTimeout, attempts)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if check() {
				return nil
			}
		}
	}
}
