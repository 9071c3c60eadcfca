package vendors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"convrelay/internal/event"
)

// TagBridgeName names the page event bus bridge.
const TagBridgeName = "tagbridge"

// PageEventsTopic is the bus topic the host-facing side drains; one
// structured record is published there per conversion.
const PageEventsTopic = "page.events"

// busEvent is the wire shape of a page-bus record.
type busEvent struct {
	Event          string `json:"event"`
	FormID         string `json:"formId,omitempty"`
	ConversionName string `json:"conversionName,omitempty"`
	Name           string `json:"name,omitempty"`
	Value          string `json:"value,omitempty"`
}

// TagBridge publishes conversion records to the page event bus. The bus is
// in-process, so the bridge is always ready and has no identify operation.
type TagBridge struct {
	pub   message.Publisher
	topic string
}

func NewTagBridge(pub message.Publisher) *TagBridge {
	return &TagBridge{pub: pub, topic: PageEventsTopic}
}

func (t *TagBridge) Name() string { return TagBridgeName }

func (t *TagBridge) NotifyReady() bool { return true }

func (t *TagBridge) Notify(ctx context.Context, rec event.Record) error {
	return t.publish(ctx, busEvent{
		Event:          "form-submit",
		FormID:         rec.FormID,
		ConversionName: rec.ConversionName,
	})
}

// PublishVariable pushes a named variable onto the bus, used by the
// experiment sync pass.
func (t *TagBridge) PublishVariable(ctx context.Context, name, value string) error {
	return t.publish(ctx, busEvent{Event: "set-variable", Name: name, Value: value})
}

func (t *TagBridge) publish(ctx context.Context, ev busEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("tagbridge: marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := t.pub.Publish(t.topic, msg); err != nil {
		return fmt.Errorf("tagbridge: publish to %s: %w", t.topic, err)
	}
	return nil
}
