package vendors

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrelay/internal/audit"
	"convrelay/internal/event"
	"convrelay/internal/identity"
	"convrelay/internal/vendorsdk"
)

type fakePulseClient struct {
	tracked    []string
	identified []string
	props      []map[string]string
}

func (c *fakePulseClient) Track(_ context.Context, event string, _ map[string]string) error {
	c.tracked = append(c.tracked, event)
	return nil
}

func (c *fakePulseClient) Identify(_ context.Context, visitorID string) error {
	c.identified = append(c.identified, visitorID)
	return nil
}

func (c *fakePulseClient) AddUserProperties(_ context.Context, props map[string]string) error {
	c.props = append(c.props, props)
	return nil
}

type fakeMorphClient struct {
	conversions []string
	identified  []string
	experiences []Experience
}

func (c *fakeMorphClient) TrackConversion(_ context.Context, name string) error {
	c.conversions = append(c.conversions, name)
	return nil
}

func (c *fakeMorphClient) Identify(_ context.Context, visitorID string, _ map[string]string) error {
	c.identified = append(c.identified, visitorID)
	return nil
}

func (c *fakeMorphClient) Experiences(context.Context) ([]Experience, error) {
	return c.experiences, nil
}

type fakeJourneyClient struct {
	identified []string
	tracked    []string
}

func (c *fakeJourneyClient) Identify(_ context.Context, email string) error {
	c.identified = append(c.identified, email)
	return nil
}

func (c *fakeJourneyClient) Track(_ context.Context, name string) error {
	c.tracked = append(c.tracked, name)
	return nil
}

func TestPulse_NotReadyUntilRegistered(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	p := NewPulse(reg)

	assert.False(t, p.NotifyReady())
	assert.False(t, p.IdentifyReady())

	reg.Register(PulseName, &fakePulseClient{})
	assert.True(t, p.NotifyReady())
}

func TestPulse_NotifyAndIdentify(t *testing.T) {
	ctx := context.Background()
	reg := vendorsdk.NewRegistry()
	client := &fakePulseClient{}
	reg.Register(PulseName, client)
	p := NewPulse(reg)

	rec := event.NewRecord("f-1", "demo-request", "a@example.com", nil)
	require.NoError(t, p.Notify(ctx, rec))
	require.NoError(t, p.Identify(ctx, identity.Identity{VisitorID: "C1", Email: "u@x.com"}))

	assert.Equal(t, []string{"Form Submission"}, client.tracked)
	assert.Equal(t, []string{"C1"}, client.identified)
	require.Len(t, client.props, 1)
	assert.Equal(t, "u@x.com", client.props[0]["email"])
}

func TestMorph_NotifyTracksConversionName(t *testing.T) {
	ctx := context.Background()
	reg := vendorsdk.NewRegistry()
	client := &fakeMorphClient{}
	reg.Register(MorphName, client)
	m := NewMorph(reg)

	rec := event.NewRecord("f-1", "demo-request", "a@example.com", nil)
	require.NoError(t, m.Notify(ctx, rec))
	require.NoError(t, m.Identify(ctx, identity.Identity{VisitorID: "C1", Email: "u@x.com"}))

	assert.Equal(t, []string{"demo-request"}, client.conversions)
	assert.Equal(t, []string{"C1"}, client.identified)
}

func TestJourney_RequiresEmail(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	reg.Register(JourneyName, &fakeJourneyClient{})
	j := NewJourney(reg)

	rec := event.Record{FormID: "f-1", ConversionName: "demo-request"}
	err := j.Notify(context.Background(), rec)
	assert.ErrorContains(t, err, "email is not defined")
}

func TestJourney_NotifyIdentifiesThenTracks(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	client := &fakeJourneyClient{}
	reg.Register(JourneyName, client)
	j := NewJourney(reg)

	rec := event.NewRecord("f-1", "demo-request", "a@example.com", nil)
	require.NoError(t, j.Notify(context.Background(), rec))

	assert.Equal(t, []string{"a@example.com"}, client.identified)
	assert.Equal(t, []string{"demo-request"}, client.tracked)
}

func TestSyncExperiments_ForwardsEachExperience(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	pulseClient := &fakePulseClient{}
	reg.Register(PulseName, pulseClient)
	reg.Register(MorphName, &fakeMorphClient{experiences: []Experience{
		{Name: "hero-copy", Variation: "variant-b"},
		{Name: "pricing-page", Variation: "control"},
	}})

	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLog := audit.NewLog()

	SyncExperiments(context.Background(), reg, NewTagBridge(bus), auditLog, log)

	assert.Equal(t, []string{"MorphExperience", "MorphExperience"}, pulseClient.tracked)
	assert.GreaterOrEqual(t, auditLog.Len(), 2)
}

func TestSyncExperiments_NoExperiencesAuditsError(t *testing.T) {
	reg := vendorsdk.NewRegistry()
	reg.Register(PulseName, &fakePulseClient{})
	reg.Register(MorphName, &fakeMorphClient{})

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLog := audit.NewLog()

	SyncExperiments(context.Background(), reg, NewTagBridge(bus), auditLog, log)

	entries := auditLog.Snapshot()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "no experiences")
}
