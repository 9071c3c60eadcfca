package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// webhook is the shared HTTP plumbing behind the vendor clients: each vendor
// exposes a server-side collection endpoint and the clients below POST JSON
// to it. One vendor's endpoint being down only fails that vendor's calls.
type webhook struct {
	baseURL string
	httpc   *http.Client
}

func newWebhook(baseURL string) webhook {
	return webhook{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w webhook) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("vendor returned %s", resp.Status)
	}
	return nil
}

func (w webhook) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := w.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("vendor returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PulseHTTP implements PulseClient against the pulse collection endpoint.
type PulseHTTP struct{ webhook }

func NewPulseHTTP(baseURL string) *PulseHTTP {
	return &PulseHTTP{newWebhook(baseURL)}
}

func (c *PulseHTTP) Track(ctx context.Context, event string, props map[string]string) error {
	return c.post(ctx, "/track", map[string]any{"event": event, "properties": props})
}

func (c *PulseHTTP) Identify(ctx context.Context, visitorID string) error {
	return c.post(ctx, "/identify", map[string]any{"visitorId": visitorID})
}

func (c *PulseHTTP) AddUserProperties(ctx context.Context, props map[string]string) error {
	return c.post(ctx, "/user-properties", map[string]any{"properties": props})
}

// MorphHTTP implements MorphClient against the morph API.
type MorphHTTP struct{ webhook }

func NewMorphHTTP(baseURL string) *MorphHTTP {
	return &MorphHTTP{newWebhook(baseURL)}
}

func (c *MorphHTTP) TrackConversion(ctx context.Context, name string) error {
	return c.post(ctx, "/conversions", map[string]any{"name": name})
}

func (c *MorphHTTP) Identify(ctx context.Context, visitorID string, traits map[string]string) error {
	return c.post(ctx, "/identify", map[string]any{"visitorId": visitorID, "traits": traits})
}

func (c *MorphHTTP) Experiences(ctx context.Context) ([]Experience, error) {
	var out []Experience
	if err := c.get(ctx, "/experiences", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// JourneyHTTP implements JourneyClient against the journey API.
type JourneyHTTP struct{ webhook }

func NewJourneyHTTP(baseURL string) *JourneyHTTP {
	return &JourneyHTTP{newWebhook(baseURL)}
}

func (c *JourneyHTTP) Identify(ctx context.Context, email string) error {
	return c.post(ctx, "/identify", map[string]any{"email": email})
}

func (c *JourneyHTTP) Track(ctx context.Context, name string) error {
	return c.post(ctx, "/track", map[string]any{"name": name})
}

// SchedulerHTTP implements SchedulerClient against the scheduling vendor's
// routing API. The vendor answers with the booking outcome, which drives the
// completion callbacks.
type SchedulerHTTP struct{ webhook }

func NewSchedulerHTTP(baseURL string) *SchedulerHTTP {
	return &SchedulerHTTP{newWebhook(baseURL)}
}

type schedulerResponse struct {
	Booked bool `json:"booked"`
	Closed bool `json:"closed"`
}

func (c *SchedulerHTTP) Submit(ctx context.Context, tenant, router string, req SubmitRequest) error {
	body, err := json.Marshal(map[string]any{
		"tenant": tenant,
		"router": router,
		"map":    req.Map,
		"lead":   req.Lead,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("vendor returned %s", resp.Status)
	}

	var result schedulerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode scheduler response: %w", err)
	}
	if result.Booked && req.OnBookingSuccess != nil {
		req.OnBookingSuccess()
	}
	if result.Closed && req.OnClose != nil {
		req.OnClose()
	}
	return nil
}
