// Package event defines the conversion event value object handed to sinks.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"convrelay/internal/identity"
)

// Record describes one conversion event. It is built fresh per submission,
// immutable after construction, and never persisted.
type Record struct {
	ID             uuid.UUID
	FormID         string
	ConversionName string
	Email          string
	// Identity is nil when resolution timed out or failed; sinks skip their
	// identify call in that case.
	Identity    *identity.Identity
	SubmittedAt time.Time
}

// NewRecord builds a Record for one submission.
func NewRecord(formID, conversionName, email string, id *identity.Identity) Record {
	return Record{
		ID:             uuid.New(),
		FormID:         formID,
		ConversionName: conversionName,
		Email:          email,
		Identity:       id,
		SubmittedAt:    time.Now().UTC(),
	}
}

// Flatten converts a submitted form's field map into flat string values.
// Multi-valued fields (checkbox groups and the like) join with ";" so
// downstream vendors that split on commas stay unconfused.
func Flatten(form map[string]any) map[string]string {
	out := make(map[string]string, len(form))
	for name, value := range form {
		out[name] = flattenValue(value)
	}
	return out
}

func flattenValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ";")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = flattenValue(item)
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(v)
	}
}
