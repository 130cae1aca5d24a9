// Package multiselect accumulates toggled choices per user and node. Toggles
// flip membership in the in-memory session only; commit merges the session
// into the durable variable store.
package multiselect

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/botweaver/botweaver/internal/errors"
	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/internal/vars"
	"github.com/botweaver/botweaver/pkg/metrics"
)

const listSeparator = ","

// Accumulator drives multi-select sessions against the session and variable
// stores.
type Accumulator struct {
	sessions session.Store
	vars     vars.Store
	log      *slog.Logger
}

// NewAccumulator wires an Accumulator.
func NewAccumulator(sessions session.Store, varstore vars.Store, log *slog.Logger) *Accumulator {
	if log == nil {
		log = slog.Default()
	}

	return &Accumulator{
		sessions: sessions,
		vars:     varstore,
		log:      log,
	}
}

// Begin establishes a multi-select session for the node, seeded from the
// durable value of the target variable so prior selections survive across
// sessions. Any awaiting-input session is discarded.
func (a *Accumulator) Begin(ctx context.Context, userID int64, node *graph.Node, cfg *graph.MultiSelectConfig, buttons []graph.Button) (*session.SelectSession, error) {
	chosen := make(map[string]struct{})

	stored, err := a.vars.Get(ctx, userID)
	if err != nil {
		// Seeding is best effort; an empty seed only loses checkmarks.
		a.log.Warn("could not seed multi-select from durable store",
			slog.Int64("user_id", userID), slog.Any("error", err))
	} else if prior, ok := stored[cfg.Variable]; ok {
		for _, token := range SplitList(prior) {
			chosen[token] = struct{}{}
		}
	}

	skip := make([]session.SkipRoute, 0)
	for _, b := range buttons {
		if b.SkipInput && b.Target != "" {
			skip = append(skip, session.SkipRoute{Text: b.Text, Target: b.Target})
		}
	}

	sel := &session.SelectSession{
		NodeID:   node.ID,
		Variable: cfg.Variable,
		Chosen:   chosen,
		Buttons:  buttons,
		NextNode: cfg.NextNode,
		DoneText: cfg.DoneText,
		Skip:     skip,
	}

	if err := session.BeginSelect(ctx, a.sessions, userID, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// Toggle flips one choice in the open session. The inbound payload carries a
// sanitized choice id; it is mapped back onto the ids of the buttons the
// session rendered so the durable value keeps the editor's identifiers.
// Toggling twice restores the original set.
func (a *Accumulator) Toggle(ctx context.Context, userID int64, sel *session.SelectSession, payloadChoice string) (map[string]struct{}, error) {
	choiceID := payloadChoice
	for _, b := range sel.Buttons {
		if graph.SanitizeChoiceID(b.ID) == payloadChoice {
			choiceID = b.ID
			break
		}
	}

	sel.Toggle(choiceID)

	if err := a.sessions.Set(ctx, userID, &session.UserState{UserID: userID, MultiSelect: sel}); err != nil {
		return nil, err
	}
	return sel.Chosen, nil
}

// Snapshot returns the current in-memory choice set.
func (a *Accumulator) Snapshot(sel *session.SelectSession) map[string]struct{} {
	out := make(map[string]struct{}, len(sel.Chosen))
	for k := range sel.Chosen {
		out[k] = struct{}{}
	}
	return out
}

// Commit merges the session set into the durable value and closes the
// session. The durable value is re-read first so a concurrent external write
// is never clobbered.
//
// The merge is additive-only: committing never removes a previously
// persisted choice, even one unticked during this session. That mirrors the
// observed product behavior; whether unticking should delete is an open
// product question, so the policy lives here in one place.
func (a *Accumulator) Commit(ctx context.Context, userID int64, sel *session.SelectSession) ([]string, string, error) {
	merged := mergeCommit(ctx, a, userID, sel)

	value := strings.Join(merged, listSeparator)
	err := errors.WithRetry(ctx, func() error {
		return a.vars.Set(ctx, userID, sel.Variable, value)
	})
	if err != nil {
		fault := errors.NewPersistenceFailure("multi-select commit", err)
		a.log.Warn("multi-select commit write failed",
			slog.Int64("user_id", userID),
			slog.String("variable", sel.Variable),
			slog.Any("error", fault))
		metrics.RecordPersistenceFailure("multi_select_commit")
	}

	if err := a.sessions.Clear(ctx, userID); err != nil {
		return nil, "", err
	}

	return merged, sel.NextNode, nil
}

func mergeCommit(ctx context.Context, a *Accumulator, userID int64, sel *session.SelectSession) []string {
	union := make(map[string]struct{}, len(sel.Chosen))
	ordered := make([]string, 0, len(sel.Chosen))

	stored, err := a.vars.Get(ctx, userID)
	if err != nil {
		a.log.Warn("could not re-read durable value before commit",
			slog.Int64("user_id", userID), slog.Any("error", err))
	} else if prior, ok := stored[sel.Variable]; ok {
		for _, token := range SplitList(prior) {
			if _, seen := union[token]; !seen {
				union[token] = struct{}{}
				ordered = append(ordered, token)
			}
		}
	}

	fresh := make([]string, 0, len(sel.Chosen))
	for token := range sel.Chosen {
		if _, seen := union[token]; !seen {
			union[token] = struct{}{}
			fresh = append(fresh, token)
		}
	}
	sort.Strings(fresh)

	return append(ordered, fresh...)
}

// SplitList parses a comma-joined stored value into deduplicated tokens.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, token := range strings.Split(value, listSeparator) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
