// Package keyboard compiles a node's button list into concrete Telegram
// reply markup and owns the routing payload grammar carried on each button.
package keyboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/botweaver/botweaver/internal/graph"
)

// Routing payload grammar. A plain alias navigates; the ms family drives
// multi-select toggles and commits; noop keeps menu layout stable for
// buttons whose target could not be resolved.
const (
	TogglePrefix  = "ms:"
	CommitPrefix  = "msdone:"
	NoopPayload   = "noop"
	payloadSep    = ":"
	payloadLimit  = graph.PayloadLimitBytes
)

// PayloadKind classifies a decoded routing payload.
type PayloadKind int

const (
	PayloadNavigate PayloadKind = iota
	PayloadToggle
	PayloadCommit
	PayloadNoop
)

// Payload is a decoded routing payload.
type Payload struct {
	Kind   PayloadKind
	Alias  string
	Choice string
}

// ErrPayloadTooLong reports a payload exceeding the transport's byte cap.
var ErrPayloadTooLong = errors.New("routing payload exceeds byte limit")

// EncodeNavigate returns the payload for a plain navigation to a node alias.
func EncodeNavigate(alias string) (string, error) {
	return checkLimit(alias)
}

// EncodeToggle returns the payload toggling one choice of a multi-select
// node.
func EncodeToggle(alias, choiceID string) (string, error) {
	return checkLimit(TogglePrefix + alias + payloadSep + graph.SanitizeChoiceID(choiceID))
}

// EncodeCommit returns the "done" payload committing a multi-select session.
func EncodeCommit(alias string) (string, error) {
	return checkLimit(CommitPrefix + alias)
}

// Decode classifies an inbound payload by shape. The same node alias appears
// in several payload roles, so dispatch keys on the prefix, never on the
// alias alone.
func Decode(data string) Payload {
	data = strings.TrimSpace(data)

	switch {
	case data == NoopPayload || data == "":
		return Payload{Kind: PayloadNoop}
	case strings.HasPrefix(data, CommitPrefix):
		return Payload{Kind: PayloadCommit, Alias: data[len(CommitPrefix):]}
	case strings.HasPrefix(data, TogglePrefix):
		rest := data[len(TogglePrefix):]
		alias, choice := rest, ""
		if idx := strings.Index(rest, payloadSep); idx >= 0 {
			alias, choice = rest[:idx], rest[idx+len(payloadSep):]
		}
		return Payload{Kind: PayloadToggle, Alias: alias, Choice: choice}
	default:
		return Payload{Kind: PayloadNavigate, Alias: data}
	}
}

func checkLimit(payload string) (string, error) {
	if len(payload) > payloadLimit {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLong, len(payload), payloadLimit)
	}
	return payload, nil
}
