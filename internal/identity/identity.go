// Package identity resolves and caches the durable visitor identity: the
// pairing of a vendor-side contact id and an email address for the current
// visitor. Resolution is keyed by a tracking cookie and persisted without
// expiry; a stored identity is treated as valid for the life of the process.
package identity

// Store keys for the persisted identity. Both must be present for the
// identity to count as resolved; a partial pair is never published.
const (
	KeyVisitorID = "visitor_contact_id"
	KeyEmail     = "visitor_email"
)

// Identity is the resolved visitor identity.
type Identity struct {
	VisitorID string
	Email     string
}

// Complete reports whether both fields are present. Incomplete identities are
// never handed to sinks.
func (i Identity) Complete() bool {
	return i.VisitorID != "" && i.Email != ""
}
