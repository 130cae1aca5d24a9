// Package input implements the free-form input-collection state machine:
// Idle → AwaitingInput(kinds, config) → Idle. One event of a compatible kind
// either matches a skip route, fails validation and keeps the session, or
// persists the target variable and clears it.
package input

import (
	"context"
	"log/slog"

	"github.com/botweaver/botweaver/internal/errors"
	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/internal/vars"
	"github.com/botweaver/botweaver/pkg/metrics"
)

// Ledger records user ids for later bulk messaging, appended opportunistically
// when a node is flagged to do so.
type Ledger interface {
	Add(ctx context.Context, userID int64) error
}

// Event is the part of an incoming update the collector inspects.
type Event struct {
	Kind session.EventKind
	Text string
	// FileID identifies the media payload for non-text kinds.
	FileID string
}

// Value returns what would be persisted for this event.
func (e Event) Value() string {
	if e.Kind == session.KindText {
		return e.Text
	}
	return e.FileID
}

// Outcome tells the router what the collector decided.
type Outcome struct {
	// Handled is false when the event kind is incompatible with the open
	// session; the router is free to route it elsewhere.
	Handled bool
	// NavigateTo names the node to render next, when any.
	NavigateTo string
	// Reply is the message to send (retry or success text), when any.
	Reply string
}

const defaultRetryText = "That doesn't look right. Please try again."

// Collector drives awaiting-input sessions against the session and variable
// stores.
type Collector struct {
	sessions session.Store
	vars     vars.Store
	ledger   Ledger
	log      *slog.Logger
}

// NewCollector wires a Collector. The ledger is optional.
func NewCollector(sessions session.Store, varstore vars.Store, ledger Ledger, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}

	return &Collector{
		sessions: sessions,
		vars:     varstore,
		ledger:   ledger,
		log:      log,
	}
}

// Begin enters AwaitingInput for the user, derived from the node's resolved
// input config and buttons. Any multi-select session is discarded.
func (c *Collector) Begin(ctx context.Context, userID int64, node *graph.Node, cfg *graph.InputConfig, buttons []graph.Button) error {
	accepts := make([]session.EventKind, 0, 5)
	for _, k := range cfg.AcceptedKinds() {
		accepts = append(accepts, session.EventKind(k))
	}

	in := &session.InputSession{
		OriginNode:  node.ID,
		Accepts:     accepts,
		Variable:    cfg.Variable,
		Persist:     cfg.Persist,
		MinLen:      cfg.MinLen,
		MaxLen:      cfg.MaxLen,
		Semantic:    cfg.Semantic,
		RetryText:   cfg.RetryText,
		SuccessText: cfg.SuccessText,
		NextNode:    cfg.NextNode,
		AddToLedger: cfg.AddToLedger,
		Skip:        skipRoutes(cfg, buttons),
	}

	return session.BeginInput(ctx, c.sessions, userID, in)
}

// Handle runs one event through the open session.
//
// The order is fixed: skip match bypasses both validation and persistence;
// validation failure keeps the session and sends the retry text; success
// persists (best effort), clears the session and hands back the declared
// continuation.
func (c *Collector) Handle(ctx context.Context, userID int64, in *session.InputSession, ev Event) (Outcome, error) {
	if ev.Kind == session.KindText {
		for _, skip := range in.Skip {
			if skip.Text != "" && skip.Text == ev.Text {
				if err := c.sessions.Clear(ctx, userID); err != nil {
					return Outcome{}, err
				}
				return Outcome{Handled: true, NavigateTo: skip.Target}, nil
			}
		}
	}

	if !in.Accepting(ev.Kind) {
		// Not ours; leave it for the router to route elsewhere.
		return Outcome{Handled: false}, nil
	}

	if err := validate(in, ev.Kind, ev.Text); err != nil {
		retry := in.RetryText
		if retry == "" {
			retry = defaultRetryText
		}
		c.log.Info("input failed validation, session preserved",
			slog.Int64("user_id", userID),
			slog.String("node_id", in.OriginNode),
			slog.String("reason", err.Error()))
		return Outcome{Handled: true, Reply: retry}, nil
	}

	if in.Persist && in.Variable != "" {
		value := ev.Value()
		err := errors.WithRetry(ctx, func() error {
			return c.vars.Set(ctx, userID, in.Variable, value)
		})
		if err != nil {
			// Best-effort persistence: log, keep the in-memory flow moving.
			fault := errors.NewPersistenceFailure("input variable write", err)
			c.log.Warn("variable write failed",
				slog.Int64("user_id", userID),
				slog.String("variable", in.Variable),
				slog.Any("error", fault))
			metrics.RecordPersistenceFailure("input_variable")
		}
	}

	if in.AddToLedger && c.ledger != nil {
		if err := c.ledger.Add(ctx, userID); err != nil {
			c.log.Warn("ledger append failed",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}

	if err := c.sessions.Clear(ctx, userID); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Handled:    true,
		NavigateTo: in.NextNode,
		Reply:      in.SuccessText,
	}, nil
}

// skipRoutes collects skip entries from the input config and from buttons
// flagged to bypass data collection.
func skipRoutes(cfg *graph.InputConfig, buttons []graph.Button) []session.SkipRoute {
	routes := make([]session.SkipRoute, 0, len(cfg.Skip)+len(buttons))
	for _, s := range cfg.Skip {
		routes = append(routes, session.SkipRoute{Text: s.Text, Target: s.Target})
	}
	for _, b := range buttons {
		if b.SkipInput && b.Target != "" {
			routes = append(routes, session.SkipRoute{Text: b.Text, Target: b.Target})
		}
	}
	return routes
}
