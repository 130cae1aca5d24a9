// Package engine renders conversation nodes: it resolves conditional
// branches, compiles keyboards, sends text and media, establishes
// awaiting-input and multi-select sessions, and chains auto-transitions.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/botweaver/botweaver/internal/condition"
	"github.com/botweaver/botweaver/internal/errors"
	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/input"
	"github.com/botweaver/botweaver/internal/keyboard"
	"github.com/botweaver/botweaver/internal/multiselect"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/internal/vars"
	"github.com/botweaver/botweaver/pkg/metrics"
)

// DefaultMaxAutoHops bounds auto-transition chains. The editor permits
// cycles of auto-transitioning nodes; exceeding the ceiling is treated as a
// handler fault rather than recursing without bound.
const DefaultMaxAutoHops = 25

// compiled pairs a graph with the keyboard compiler bound to its alias
// table, swapped atomically on hot reload.
type compiled struct {
	graph       *graph.Graph
	keyboard    *keyboard.Compiler
	commands    map[string]string
	replyRoutes map[string]string
}

// Engine renders nodes for users.
type Engine struct {
	current     atomic.Pointer[compiled]
	evaluator   *condition.Evaluator
	sessions    session.Store
	vars        vars.Store
	collector   *input.Collector
	accumulator *multiselect.Accumulator
	log         *slog.Logger
	maxAutoHops int
}

// Config wires an Engine.
type Config struct {
	Graph       *graph.Graph
	Sessions    session.Store
	Vars        vars.Store
	Collector   *input.Collector
	Accumulator *multiselect.Accumulator
	Log         *slog.Logger
	MaxAutoHops int
}

// New builds an Engine for the given graph.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	hops := cfg.MaxAutoHops
	if hops <= 0 {
		hops = DefaultMaxAutoHops
	}

	e := &Engine{
		evaluator:   condition.NewEvaluator(log),
		sessions:    cfg.Sessions,
		vars:        cfg.Vars,
		collector:   cfg.Collector,
		accumulator: cfg.Accumulator,
		log:         log,
		maxAutoHops: hops,
	}
	e.swap(cfg.Graph)
	return e
}

// swap installs a new compiled graph.
func (e *Engine) swap(g *graph.Graph) {
	e.current.Store(&compiled{
		graph:       g,
		keyboard:    keyboard.NewCompiler(g.Aliases(), e.log),
		commands:    g.Commands(),
		replyRoutes: g.ReplyRoutes(),
	})
}

// Graph returns the graph currently being served.
func (e *Engine) Graph() *graph.Graph {
	return e.current.Load().graph
}

// Keyboard returns the compiler bound to the current graph.
func (e *Engine) Keyboard() *keyboard.Compiler {
	return e.current.Load().keyboard
}

// CommandNode resolves a command name (without the slash) to a node id.
func (e *Engine) CommandNode(name string) (string, bool) {
	id, ok := e.current.Load().commands[name]
	return id, ok
}

// ReplyRoute resolves a persistent-keyboard button label to its target node.
func (e *Engine) ReplyRoute(text string) (string, bool) {
	id, ok := e.current.Load().replyRoutes[text]
	return id, ok
}

// Render renders a node for the user and follows any auto-transition chain.
func (e *Engine) Render(ctx context.Context, c telebot.Context, userID int64, nodeID string) error {
	return e.render(ctx, c, userID, nodeID, 0)
}

func (e *Engine) render(ctx context.Context, c telebot.Context, userID int64, nodeID string, hop int) error {
	if hop > e.maxAutoHops {
		metrics.RecordChainOverflow()
		return errors.NewChainOverflow(nodeID, e.maxAutoHops)
	}

	cur := e.current.Load()
	node := cur.graph.Node(nodeID)
	if node == nil {
		return errors.NewRoutingMiss(nodeID)
	}

	started := time.Now()

	snapshot, err := e.vars.Get(ctx, userID)
	if err != nil {
		e.log.Warn("variable snapshot unavailable, rendering with empty set",
			slog.Int64("user_id", userID), slog.Any("error", err))
		snapshot = map[string]string{}
	}

	res := e.evaluator.Evaluate(node, snapshot)
	e.markVisited(ctx, userID, node, snapshot)

	waiting, err := e.establishSessions(ctx, c, userID, cur, node, res)
	if err != nil {
		return errors.NewHandlerException(err)
	}

	metrics.RecordRender(string(node.Type), time.Since(started))

	if waiting || node.Data.AutoNext == "" {
		if hop > 0 {
			metrics.RecordAutoHops(hop)
		}
		return nil
	}

	return e.render(ctx, c, userID, node.Data.AutoNext, hop+1)
}

// establishSessions sends the node's content and installs whichever waiting
// state the node declares. It reports whether the node ended up waiting on
// the user.
func (e *Engine) establishSessions(ctx context.Context, c telebot.Context, userID int64, cur *compiled, node *graph.Node, res condition.Resolution) (bool, error) {
	alias, _ := cur.graph.Aliases().Alias(node.ID)

	hints := keyboard.Hints{
		Kind:    node.Data.Keyboard,
		OneTime: node.Data.OneTime,
		Resize:  node.Data.Resize,
	}

	var sel *session.SelectSession
	if ms := node.Data.MultiSelect; ms != nil && ms.Enabled {
		var err error
		sel, err = e.accumulator.Begin(ctx, userID, node, ms, res.Buttons)
		if err != nil {
			return false, err
		}
		hints.MultiSelect = true
		hints.NodeAlias = alias
		hints.DoneText = ms.DoneText
		hints.Chosen = sel.Chosen
		if hints.Kind == graph.KeyboardNone {
			hints.Kind = graph.KeyboardInline
		}
	}

	markup := cur.keyboard.Compile(res.Buttons, hints)

	if err := e.send(c, node, res.Text, markup); err != nil {
		return false, err
	}

	if sel != nil {
		return true, nil
	}

	if in := res.Input; in != nil && in.Enabled {
		if err := e.collector.Begin(ctx, userID, node, in, res.Buttons); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// send delivers the node's text and attached media over the user's chat.
func (e *Engine) send(c telebot.Context, node *graph.Node, text string, markup *telebot.ReplyMarkup) error {
	sent := false

	for _, m := range node.Data.Media {
		var payload interface{}
		file := mediaFile(m)

		switch m.Kind {
		case "photo":
			payload = &telebot.Photo{File: file, Caption: m.Caption}
		case "video":
			payload = &telebot.Video{File: file, Caption: m.Caption}
		case "audio":
			payload = &telebot.Audio{File: file, Caption: m.Caption}
		case "document":
			payload = &telebot.Document{File: file, Caption: m.Caption}
		default:
			e.log.Warn("unknown media kind skipped",
				slog.String("node_id", node.ID), slog.String("kind", m.Kind))
			continue
		}

		// The markup rides on the last outbound message; attach it to media
		// only when the node has no text of its own.
		if text == "" && markup != nil {
			if err := c.Send(payload, markup); err != nil {
				return err
			}
			markup = nil
		} else if err := c.Send(payload); err != nil {
			return err
		}
		sent = true
	}

	if text != "" {
		if markup != nil {
			return c.Send(text, markup)
		}
		return c.Send(text)
	}

	if !sent && markup != nil {
		// A buttons-only node still needs a carrier message.
		return c.Send("…", markup)
	}

	return nil
}

// markVisited records the durable first-visit marker after the user has seen
// the node once. Best effort.
func (e *Engine) markVisited(ctx context.Context, userID int64, node *graph.Node, snapshot map[string]string) {
	marker := condition.VisitMarker(node.ID)
	if _, ok := snapshot[marker]; ok {
		return
	}

	if err := e.vars.Set(ctx, userID, marker, "1"); err != nil {
		e.log.Warn("could not record visit marker",
			slog.Int64("user_id", userID), slog.String("node_id", node.ID), slog.Any("error", err))
	}
}

func mediaFile(m graph.MediaRef) telebot.File {
	if m.FileID != "" {
		return telebot.File{FileID: m.FileID}
	}
	return telebot.FromURL(m.URL)
}
