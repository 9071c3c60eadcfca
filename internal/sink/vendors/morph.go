package vendors

import (
	"context"
	"fmt"

	"convrelay/internal/event"
	"convrelay/internal/identity"
	"convrelay/internal/vendorsdk"
)

// MorphName is the registry key for the morph personalization client.
const MorphName = "morph"

// Experience is one personalization experiment a visitor was bucketed into.
type Experience struct {
	Name      string `json:"experience"`
	Variation string `json:"variationName"`
}

// MorphClient is the capability surface of the morph personalization vendor.
type MorphClient interface {
	TrackConversion(ctx context.Context, name string) error
	Identify(ctx context.Context, visitorID string, traits map[string]string) error
	Experiences(ctx context.Context) ([]Experience, error)
}

// Morph records conversions and identity with the morph personalization
// vendor.
type Morph struct {
	reg   *vendorsdk.Registry
	ready func() bool
}

func NewMorph(reg *vendorsdk.Registry) *Morph {
	return &Morph{
		reg: reg,
		ready: reg.Probe(MorphName, func(c any) bool {
			_, ok := c.(MorphClient)
			return ok
		}),
	}
}

func (m *Morph) Name() string { return MorphName }

func (m *Morph) client() (MorphClient, bool) {
	c, ok := m.reg.Lookup(MorphName)
	if !ok {
		return nil, false
	}
	mc, ok := c.(MorphClient)
	return mc, ok
}

func (m *Morph) NotifyReady() bool { return m.ready() }

func (m *Morph) Notify(ctx context.Context, rec event.Record) error {
	c, ok := m.client()
	if !ok {
		return fmt.Errorf("morph client not registered")
	}
	return c.TrackConversion(ctx, rec.ConversionName)
}

func (m *Morph) IdentifyReady() bool { return m.ready() }

func (m *Morph) Identify(ctx context.Context, id identity.Identity) error {
	c, ok := m.client()
	if !ok {
		return fmt.Errorf("morph client not registered")
	}
	return c.Identify(ctx, id.VisitorID, map[string]string{"email": id.Email})
}
