package vendors

import (
	"context"
	"fmt"
	"log/slog"

	"convrelay/internal/audit"
	"convrelay/internal/gate"
	"convrelay/internal/vendorsdk"
)

// SyncExperiments runs the one-shot experiment sync pass: once morph and
// pulse are both ready, every experience the visitor was bucketed into is
// forwarded to pulse and published as a bus variable. Best-effort and
// non-gating: failures are audit-logged and the pass simply ends.
func SyncExperiments(ctx context.Context, reg *vendorsdk.Registry, bridge *TagBridge, auditLog *audit.Log, log *slog.Logger) {
	budget := gate.Config{MaxAttempts: 50}

	morph := NewMorph(reg)
	pulse := NewPulse(reg)

	morphGate := budget
	morphGate.Name = MorphName + ".experiences"
	if err := gate.Await(ctx, morph.NotifyReady, morphGate); err != nil {
		auditLog.Errorf("experiment sync: %v", err)
		return
	}
	pulseGate := budget
	pulseGate.Name = PulseName + ".track"
	if err := gate.Await(ctx, pulse.NotifyReady, pulseGate); err != nil {
		auditLog.Errorf("experiment sync: %v", err)
		return
	}

	client, _ := morph.client()
	experiences, err := client.Experiences(ctx)
	if err != nil {
		auditLog.Errorf("experiment sync: fetch experiences: %v", err)
		return
	}
	if len(experiences) == 0 {
		auditLog.Errorf("experiment sync: no experiences reported")
		return
	}

	for _, exp := range experiences {
		value := fmt.Sprintf("%s (%s)", exp.Name, exp.Variation)
		if err := bridge.PublishVariable(ctx, "MorphExperience", value); err != nil {
			log.Warn("experiment sync: publish variable", "error", err)
		}
		if err := pulse.Track(ctx, "MorphExperience", map[string]string{
			"experience": exp.Name,
			"variation":  exp.Variation,
		}); err != nil {
			log.Warn("experiment sync: track", "error", err)
		}
		auditLog.Logf("experiment synced: %s", value)
	}
}
