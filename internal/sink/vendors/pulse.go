// Package vendors contains the sink adapters for the external vendor
// integrations a conversion fans out to. Each adapter resolves its client
// handle from the vendorsdk registry at call time, since vendor clients
// initialize asynchronously.
package vendors

import (
	"context"
	"fmt"

	"convrelay/internal/event"
	"convrelay/internal/identity"
	"convrelay/internal/vendorsdk"
)

// PulseName is the registry key for the pulse analytics client.
const PulseName = "pulse"

// PulseClient is the capability surface of the pulse analytics vendor.
type PulseClient interface {
	Track(ctx context.Context, event string, props map[string]string) error
	Identify(ctx context.Context, visitorID string) error
	AddUserProperties(ctx context.Context, props map[string]string) error
}

// Pulse records conversions and identity with the pulse analytics vendor.
type Pulse struct {
	reg   *vendorsdk.Registry
	ready func() bool
}

func NewPulse(reg *vendorsdk.Registry) *Pulse {
	return &Pulse{
		reg: reg,
		ready: reg.Probe(PulseName, func(c any) bool {
			_, ok := c.(PulseClient)
			return ok
		}),
	}
}

func (p *Pulse) Name() string { return PulseName }

func (p *Pulse) client() (PulseClient, bool) {
	c, ok := p.reg.Lookup(PulseName)
	if !ok {
		return nil, false
	}
	pc, ok := c.(PulseClient)
	return pc, ok
}

func (p *Pulse) NotifyReady() bool { return p.ready() }

func (p *Pulse) Notify(ctx context.Context, rec event.Record) error {
	c, ok := p.client()
	if !ok {
		return fmt.Errorf("pulse client not registered")
	}
	return c.Track(ctx, "Form Submission", map[string]string{
		"email":      rec.Email,
		"conversion": rec.ConversionName,
	})
}

func (p *Pulse) IdentifyReady() bool { return p.ready() }

func (p *Pulse) Identify(ctx context.Context, id identity.Identity) error {
	c, ok := p.client()
	if !ok {
		return fmt.Errorf("pulse client not registered")
	}
	if err := c.Identify(ctx, id.VisitorID); err != nil {
		return err
	}
	return c.AddUserProperties(ctx, map[string]string{"email": id.Email})
}

// Track forwards an ad hoc event to pulse if the client is registered. Used
// by side channels (scheduler callbacks, experiment sync) that emit events
// outside a dispatch.
func (p *Pulse) Track(ctx context.Context, name string, props map[string]string) error {
	c, ok := p.client()
	if !ok {
		return fmt.Errorf("pulse client not registered")
	}
	return c.Track(ctx, name, props)
}
