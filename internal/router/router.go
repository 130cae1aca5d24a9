// Package router dispatches every incoming update to the right handler. The
// dispatch order is fixed: skip-button match, then an active multi-select
// session, then an active input session, then fresh navigation. An unknown
// payload produces exactly one neutral reply and leaves runtime state
// untouched.
package router

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/botweaver/botweaver/internal/engine"
	"github.com/botweaver/botweaver/internal/errors"
	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/input"
	"github.com/botweaver/botweaver/internal/keyboard"
	"github.com/botweaver/botweaver/internal/multiselect"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/pkg/metrics"
)

// Router routes updates through the conversation state machine.
type Router struct {
	engine      *engine.Engine
	sessions    session.Store
	collector   *input.Collector
	accumulator *multiselect.Accumulator
	log         *slog.Logger
}

// New wires a Router.
func New(eng *engine.Engine, sessions session.Store, collector *input.Collector, accumulator *multiselect.Accumulator, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		engine:      eng,
		sessions:    sessions,
		collector:   collector,
		accumulator: accumulator,
		log:         log,
	}
}

// event is the normalized view of an incoming update.
type event struct {
	kind     session.EventKind
	text     string
	fileID   string
	payload  string // callback payload, empty for plain messages
	callback bool
}

// Route handles one update. It is called under the per-user serial queue.
func (r *Router) Route(c telebot.Context) error {
	if c == nil || c.Sender() == nil {
		r.log.Warn("update without sender dropped")
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID
	ev := normalize(c)

	if ev.callback {
		// Stop the client-side spinner regardless of what the press does.
		defer func() { _ = c.Respond() }()
	}

	state, err := r.sessions.Get(ctx, userID)
	if err != nil && !stderrors.Is(err, session.ErrNotFound) {
		return errors.NewHandlerException(err)
	}

	// 1. Skip-button match against any pending skip configuration: routes
	// without validation or persistence.
	if target, ok := r.matchSkip(state, ev); ok {
		if err := r.sessions.Clear(ctx, userID); err != nil {
			return errors.NewHandlerException(err)
		}
		metrics.RecordUpdate(string(ev.kind), "skip")
		return r.engine.Render(ctx, c, userID, target)
	}

	// 2. An active multi-select session claims the event outright.
	if state != nil && state.MultiSelect != nil {
		return r.routeMultiSelect(ctx, c, userID, state.MultiSelect, ev)
	}

	// 3. An active input session gets first refusal on message events.
	// Button presses carry routing payloads, never free-form input, so they
	// fall through to payload dispatch even while input is awaited.
	if state != nil && state.Input != nil && !ev.callback {
		handled, err := r.routeInput(ctx, c, userID, state.Input, ev)
		if err != nil || handled {
			return err
		}
	}

	// 4. Fresh navigation.
	return r.routeNavigation(ctx, c, userID, ev)
}

func (r *Router) matchSkip(state *session.UserState, ev event) (string, bool) {
	if state == nil || ev.kind != session.KindText || ev.text == "" {
		return "", false
	}

	var routes []session.SkipRoute
	if state.Input != nil {
		routes = state.Input.Skip
	} else if state.MultiSelect != nil {
		routes = state.MultiSelect.Skip
	}

	for _, skip := range routes {
		if skip.Text == ev.text && skip.Target != "" {
			return skip.Target, true
		}
	}
	return "", false
}

func (r *Router) routeMultiSelect(ctx context.Context, c telebot.Context, userID int64, sel *session.SelectSession, ev event) error {
	g := r.engine.Graph()
	node := g.Node(sel.NodeID)
	if node == nil {
		// The graph was reloaded underneath the session; close it out.
		r.log.Warn("multi-select session references a vanished node",
			slog.Int64("user_id", userID), slog.String("node_id", sel.NodeID))
		if err := r.sessions.Clear(ctx, userID); err != nil {
			return errors.NewHandlerException(err)
		}
		return r.fallback(c, sel.NodeID)
	}

	payload := keyboard.Decode(ev.payload)

	switch payload.Kind {
	case keyboard.PayloadToggle:
		chosen, err := r.accumulator.Toggle(ctx, userID, sel, payload.Choice)
		if err != nil {
			return errors.NewHandlerException(err)
		}
		metrics.RecordUpdate(string(ev.kind), "toggle")
		return r.redrawChoices(c, node, sel, chosen)

	case keyboard.PayloadCommit:
		merged, next, err := r.accumulator.Commit(ctx, userID, sel)
		if err != nil {
			return errors.NewHandlerException(err)
		}
		metrics.RecordUpdate(string(ev.kind), "commit")

		if target := commitTarget(node.Data.RedirectAfterCommit, next, g, node.ID); target != "" {
			return r.engine.Render(ctx, c, userID, target)
		}
		return c.Send(confirmText(merged))

	default:
		// While a multi-select session is open the event is never treated as
		// free navigation.
		r.log.Info("event ignored during multi-select session",
			slog.Int64("user_id", userID), slog.String("payload", ev.payload))
		return nil
	}
}

// redrawChoices re-labels the choice menu with current checkmarks. The
// session's button snapshot is authoritative: a branch may have rendered a
// different list than the node declares. Buttons flagged hide-after-click
// render once and are not reissued.
func (r *Router) redrawChoices(c telebot.Context, node *graph.Node, sel *session.SelectSession, chosen map[string]struct{}) error {
	if keyboard.AnyHideAfterClick(sel.Buttons) {
		return nil
	}

	alias, _ := r.engine.Graph().Aliases().Alias(node.ID)
	markup := r.engine.Keyboard().Compile(sel.Buttons, keyboard.Hints{
		Kind:        node.Data.Keyboard,
		MultiSelect: true,
		NodeAlias:   alias,
		DoneText:    sel.DoneText,
		Chosen:      chosen,
	})
	if markup == nil {
		return nil
	}

	// Editing an unchanged message is a telebot error, not a fault worth a
	// user-facing fallback.
	if err := c.Edit(markup); err != nil {
		r.log.Info("could not redraw choice menu", slog.Any("error", err))
	}
	return nil
}

func (r *Router) routeInput(ctx context.Context, c telebot.Context, userID int64, in *session.InputSession, ev event) (bool, error) {
	outcome, err := r.collector.Handle(ctx, userID, in, input.Event{
		Kind:   ev.kind,
		Text:   ev.text,
		FileID: ev.fileID,
	})
	if err != nil {
		return true, errors.NewHandlerException(err)
	}
	if !outcome.Handled {
		return false, nil
	}

	metrics.RecordUpdate(string(ev.kind), "input")

	if outcome.Reply != "" {
		if err := c.Send(outcome.Reply); err != nil {
			return true, errors.NewHandlerException(err)
		}
	}

	// A retry keeps the session open and goes nowhere.
	if outcome.Reply != "" && outcome.NavigateTo == "" {
		if state, err := r.sessions.Get(ctx, userID); err == nil && state != nil && state.Input != nil {
			return true, nil
		}
	}

	target := outcome.NavigateTo
	if target == "" {
		// Connection fallback: the origin node's default edge.
		target, _ = r.engine.Graph().NextOf(in.OriginNode)
	}
	if target == "" {
		return true, nil
	}

	return true, r.engine.Render(ctx, c, userID, target)
}

func (r *Router) routeNavigation(ctx context.Context, c telebot.Context, userID int64, ev event) error {
	// Commands resolve to their command node.
	if ev.kind == session.KindText && strings.HasPrefix(ev.text, "/") {
		name := strings.TrimPrefix(strings.Fields(ev.text)[0], "/")
		if nodeID, ok := r.engine.CommandNode(name); ok {
			metrics.RecordUpdate(string(ev.kind), "command")
			return r.engine.Render(ctx, c, userID, nodeID)
		}
	}

	if ev.callback {
		payload := keyboard.Decode(ev.payload)
		switch payload.Kind {
		case keyboard.PayloadNoop:
			return nil
		case keyboard.PayloadNavigate:
			if nodeID, ok := r.engine.Graph().Aliases().Resolve(payload.Alias); ok {
				metrics.RecordUpdate(string(ev.kind), "navigate")
				return r.engine.Render(ctx, c, userID, nodeID)
			}
		case keyboard.PayloadToggle, keyboard.PayloadCommit:
			// A stale multi-select press after its session was superseded.
			r.log.Info("stale multi-select payload ignored",
				slog.Int64("user_id", userID), slog.String("payload", ev.payload))
			return nil
		}
		return r.miss(c, userID, ev.payload)
	}

	// Persistent-keyboard buttons come back as plain text.
	if ev.kind == session.KindText {
		if nodeID, ok := r.engine.ReplyRoute(ev.text); ok {
			metrics.RecordUpdate(string(ev.kind), "navigate")
			return r.engine.Render(ctx, c, userID, nodeID)
		}
	}

	return r.miss(c, userID, ev.text)
}

// miss logs a routing miss and sends one neutral reply. Runtime state is
// left untouched.
func (r *Router) miss(c telebot.Context, userID int64, payload string) error {
	fault := errors.NewRoutingMiss(payload)
	r.log.Info("routing miss",
		slog.Int64("user_id", userID), slog.String("payload", payload))
	metrics.RecordRoutingMiss()
	return c.Send(fault.UserMessage)
}

func (r *Router) fallback(c telebot.Context, payload string) error {
	return c.Send(errors.NewRoutingMiss(payload).UserMessage)
}

// commitTarget picks where a committed multi-select proceeds: the node's
// data-driven post-commit redirect wins, then the declared continuation,
// then the connection fallback.
func commitTarget(redirect, next string, g *graph.Graph, nodeID string) string {
	if redirect != "" {
		return redirect
	}
	if next != "" {
		return next
	}
	if target, ok := g.NextOf(nodeID); ok {
		return target
	}
	return ""
}

func confirmText(merged []string) string {
	if len(merged) == 0 {
		return "Saved."
	}
	return "Saved: " + strings.Join(merged, ", ")
}

// normalize flattens a telebot context into the router's event shape.
func normalize(c telebot.Context) event {
	if cb := c.Callback(); cb != nil {
		return event{
			kind:     session.KindText,
			payload:  strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f"),
			callback: true,
		}
	}

	msg := c.Message()
	if msg == nil {
		return event{kind: session.KindText}
	}

	switch {
	case msg.Photo != nil:
		return event{kind: session.KindPhoto, fileID: msg.Photo.FileID, text: msg.Caption}
	case msg.Video != nil:
		return event{kind: session.KindVideo, fileID: msg.Video.FileID, text: msg.Caption}
	case msg.Audio != nil:
		return event{kind: session.KindAudio, fileID: msg.Audio.FileID, text: msg.Caption}
	case msg.Document != nil:
		return event{kind: session.KindDocument, fileID: msg.Document.FileID, text: msg.Caption}
	default:
		return event{kind: session.KindText, text: msg.Text}
	}
}
