// Package vars is the durable variable store: the system of record for
// per-user variables across process restarts. All runtime components consume
// it through the narrow get/set contract.
package vars

import (
	"context"
	"encoding/json"
)

// Store is the durable key-value contract every component depends on.
type Store interface {
	// Get returns the full variable map for a user. A user with no
	// variables yields an empty map, not an error.
	Get(ctx context.Context, userID int64) (map[string]string, error)
	// Set writes one variable for a user.
	Set(ctx context.Context, userID int64, key, value string) error
}

// envelope is the {value, metadata} wrapper some writers use. Readers must
// accept both the wrapped and the scalar shape.
type envelope struct {
	Value    json.RawMessage `json:"value"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Unwrap normalizes a stored value: JSON envelopes collapse to their inner
// value, quoted JSON strings lose their quotes, everything else passes
// through verbatim.
func Unwrap(raw string) string {
	trimmed := raw
	if len(trimmed) == 0 {
		return trimmed
	}

	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil && env.Value != nil {
			trimmed = string(env.Value)
		}
	}

	if len(trimmed) >= 2 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s
		}
	}

	return trimmed
}
