package vendors

import (
	"context"
	"fmt"

	"convrelay/internal/event"
	"convrelay/internal/vendorsdk"
)

// JourneyName is the registry key for the journey attribution client.
const JourneyName = "journey"

// JourneyClient is the capability surface of the journey attribution vendor.
// It keys identity by email, not visitor id.
type JourneyClient interface {
	Identify(ctx context.Context, email string) error
	Track(ctx context.Context, name string) error
}

// Journey forwards conversions to the journey attribution vendor. Its
// identify is part of the notify call (email-keyed), so it exposes no
// separate identify operation.
type Journey struct {
	reg   *vendorsdk.Registry
	ready func() bool
}

func NewJourney(reg *vendorsdk.Registry) *Journey {
	return &Journey{
		reg: reg,
		ready: reg.Probe(JourneyName, func(c any) bool {
			_, ok := c.(JourneyClient)
			return ok
		}),
	}
}

func (j *Journey) Name() string { return JourneyName }

func (j *Journey) client() (JourneyClient, bool) {
	c, ok := j.reg.Lookup(JourneyName)
	if !ok {
		return nil, false
	}
	jc, ok := c.(JourneyClient)
	return jc, ok
}

func (j *Journey) NotifyReady() bool { return j.ready() }

func (j *Journey) Notify(ctx context.Context, rec event.Record) error {
	if rec.Email == "" {
		return fmt.Errorf("journey: email is not defined")
	}
	c, ok := j.client()
	if !ok {
		return fmt.Errorf("journey client not registered")
	}
	if err := c.Identify(ctx, rec.Email); err != nil {
		return err
	}
	return c.Track(ctx, rec.ConversionName)
}
