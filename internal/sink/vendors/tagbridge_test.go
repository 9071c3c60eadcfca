package vendors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrelay/internal/event"
)

func newBus(t *testing.T) (*gochannel.GoChannel, <-chan *watermillMessage) {
	t.Helper()
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	msgs, err := bus.Subscribe(context.Background(), PageEventsTopic)
	require.NoError(t, err)

	out := make(chan *watermillMessage, 8)
	go func() {
		for msg := range msgs {
			var ev busEvent
			if err := json.Unmarshal(msg.Payload, &ev); err == nil {
				out <- &watermillMessage{ev: ev}
			}
			msg.Ack()
		}
	}()
	return bus, out
}

type watermillMessage struct{ ev busEvent }

func receive(t *testing.T, ch <-chan *watermillMessage) busEvent {
	t.Helper()
	select {
	case m := <-ch:
		return m.ev
	case <-time.After(time.Second):
		t.Fatal("no message on page event bus")
		return busEvent{}
	}
}

func TestTagBridge_NotifyPublishesFormSubmit(t *testing.T) {
	bus, msgs := newBus(t)
	bridge := NewTagBridge(bus)

	assert.True(t, bridge.NotifyReady(), "in-process bus is always ready")

	rec := event.NewRecord("f-1", "demo-request", "a@example.com", nil)
	require.NoError(t, bridge.Notify(context.Background(), rec))

	got := receive(t, msgs)
	assert.Equal(t, "form-submit", got.Event)
	assert.Equal(t, "f-1", got.FormID)
	assert.Equal(t, "demo-request", got.ConversionName)
}

func TestTagBridge_PublishVariable(t *testing.T) {
	bus, msgs := newBus(t)
	bridge := NewTagBridge(bus)

	err := bridge.PublishVariable(context.Background(), "MorphExperience", "hero-copy (variant-b)")
	require.NoError(t, err)

	got := receive(t, msgs)
	assert.Equal(t, "set-variable", got.Event)
	assert.Equal(t, "MorphExperience", got.Name)
	assert.Equal(t, "hero-copy (variant-b)", got.Value)
}
