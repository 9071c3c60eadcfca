package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrLookupFailed is returned when the identity service answers with a
// non-2xx status or a payload missing the contact id or email.
var ErrLookupFailed = errors.New("identity lookup failed")

// TokenParam is the query parameter carrying the tracking cookie value.
const TokenParam = "vtk"

// LookupClient calls the remote identity lookup service: a GET with the
// cookie token as the single query parameter, answering
// {"contactId": "...", "email": "..."}.
type LookupClient struct {
	baseURL string
	httpc   *http.Client
}

func NewLookupClient(baseURL string) *LookupClient {
	return &LookupClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupResponse struct {
	ContactID string `json:"contactId"`
	Email     string `json:"email"`
}

// Fetch resolves the identity for a cookie token.
func (c *LookupClient) Fetch(ctx context.Context, token string) (Identity, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup url: %w", err)
	}
	q := u.Query()
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Identity{}, fmt.Errorf("%w: status %s", ErrLookupFailed, resp.Status)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Identity{}, fmt.Errorf("%w: decode body: %v", ErrLookupFailed, err)
	}

	id := Identity{VisitorID: body.ContactID, Email: body.Email}
	if !id.Complete() {
		return Identity{}, fmt.Errorf("%w: payload missing contactId or email", ErrLookupFailed)
	}
	return id, nil
}
