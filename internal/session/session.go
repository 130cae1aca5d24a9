// Package session tracks ephemeral per-user runtime state: the awaiting-input
// record, the multi-select accumulator session, and the per-user serial
// queue that orders event handling. Sessions live in process memory and are
// lost on restart; durable variables never live here.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/botweaver/botweaver/internal/graph"
)

// EventKind classifies an incoming update for input-collection matching.
type EventKind string

const (
	KindText     EventKind = "text"
	KindPhoto    EventKind = "photo"
	KindVideo    EventKind = "video"
	KindAudio    EventKind = "audio"
	KindDocument EventKind = "document"
)

// ErrNotFound indicates that no runtime state exists for a user. Absence is
// the terminal state of a session, not an error condition for callers that
// treat missing as idle.
var ErrNotFound = errors.New("user runtime state not found")

// SkipRoute names a button text that routes straight to a target node,
// bypassing validation and persistence, while a session is open.
type SkipRoute struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// InputSession is the awaiting-input record for a user.
type InputSession struct {
	OriginNode  string      `json:"origin_node"`
	Accepts     []EventKind `json:"accepts"`
	Variable    string      `json:"variable"`
	Persist     bool        `json:"persist"`
	MinLen      int         `json:"min_len"`
	MaxLen      int         `json:"max_len"`
	Semantic    string      `json:"semantic,omitempty"`
	RetryText   string      `json:"retry_text,omitempty"`
	SuccessText string      `json:"success_text,omitempty"`
	NextNode    string      `json:"next_node,omitempty"`
	AddToLedger bool        `json:"add_to_ledger,omitempty"`
	Skip        []SkipRoute `json:"skip,omitempty"`
}

// Accepting reports whether the session accepts events of the given kind.
func (s *InputSession) Accepting(kind EventKind) bool {
	for _, k := range s.Accepts {
		if k == kind {
			return true
		}
	}
	return false
}

// SelectSession is the multi-select accumulator session for one node. It
// snapshots the button list the user was actually shown: a conditional branch
// may override the node's own buttons, so toggles and redraws must work
// against the rendered menu, not the node defaults.
type SelectSession struct {
	NodeID   string              `json:"node_id"`
	Variable string              `json:"variable"`
	Chosen   map[string]struct{} `json:"chosen"`
	Buttons  []graph.Button      `json:"buttons,omitempty"`
	NextNode string              `json:"next_node,omitempty"`
	DoneText string              `json:"done_text,omitempty"`
	Skip     []SkipRoute         `json:"skip,omitempty"`
}

// Toggle flips membership of a choice and reports whether it is now chosen.
func (s *SelectSession) Toggle(choiceID string) bool {
	if s.Chosen == nil {
		s.Chosen = make(map[string]struct{})
	}
	if _, ok := s.Chosen[choiceID]; ok {
		delete(s.Chosen, choiceID)
		return false
	}
	s.Chosen[choiceID] = struct{}{}
	return true
}

// UserState is the per-user runtime record. At most one input session and
// one multi-select session exist at a time; establishing either silently
// discards the other.
type UserState struct {
	UserID      int64          `json:"user_id"`
	Input       *InputSession  `json:"input,omitempty"`
	MultiSelect *SelectSession `json:"multi_select,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Idle reports whether the user is waiting on nothing.
func (u *UserState) Idle() bool {
	return u == nil || (u.Input == nil && u.MultiSelect == nil)
}

// Store is the persistence contract for per-user runtime state.
type Store interface {
	// Get returns the runtime state, or ErrNotFound when the user is idle.
	Get(ctx context.Context, userID int64) (*UserState, error)
	// Set replaces the runtime state.
	Set(ctx context.Context, userID int64, state *UserState) error
	// Clear removes the runtime state entirely.
	Clear(ctx context.Context, userID int64) error
}

// BeginInput installs an awaiting-input session, discarding any multi-select
// session per the one-active-session invariant.
func BeginInput(ctx context.Context, store Store, userID int64, in *InputSession) error {
	return store.Set(ctx, userID, &UserState{UserID: userID, Input: in})
}

// BeginSelect installs a multi-select session, discarding any awaiting-input
// session.
func BeginSelect(ctx context.Context, store Store, userID int64, sel *SelectSession) error {
	return store.Set(ctx, userID, &UserState{UserID: userID, MultiSelect: sel})
}
