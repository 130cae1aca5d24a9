// Package condition selects at most one conditional branch for a node based
// on a snapshot of the user's stored variables. Evaluation is pure: the same
// snapshot always yields the same branch.
package condition

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/botweaver/botweaver/internal/graph"
)

// VisitMarkerPrefix namespaces the durable per-node visit markers the engine
// writes after a first render. first_visit/returning_visit predicates read
// these markers.
const VisitMarkerPrefix = "_visited_"

// VisitMarker returns the variable name recording that a user has seen the
// given node before.
func VisitMarker(nodeID string) string {
	return VisitMarkerPrefix + graph.SanitizeIdentifier(nodeID, 48)
}

// Resolution carries the outcome of evaluating a node's branches: the
// matched branch (nil when none fired) and the effective buttons and input
// configuration after overrides.
type Resolution struct {
	Branch  *graph.Branch
	Text    string
	Buttons []graph.Button
	Input   *graph.InputConfig
}

// Evaluator resolves conditional branches against user variables.
type Evaluator struct {
	log *slog.Logger
}

// NewEvaluator returns an Evaluator. Unknown predicate kinds and broken
// expressions are logged and treated as non-matching, never as errors.
func NewEvaluator(log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{log: log}
}

// Evaluate picks the highest-priority matching branch for a node. Branches
// are ordered by descending priority; declaration order breaks ties. When no
// branch matches, the node's own text, buttons and input config apply.
func (e *Evaluator) Evaluate(node *graph.Node, vars map[string]string) Resolution {
	res := Resolution{
		Text:    node.Data.Text,
		Buttons: node.Data.Buttons,
		Input:   node.Data.Input,
	}

	branches := orderedBranches(node.Data.Branches)
	for _, br := range branches {
		if !e.matches(node, br, vars) {
			continue
		}

		res.Branch = br
		if br.Text != "" {
			res.Text = br.Text
		}
		if len(br.Buttons) > 0 {
			res.Buttons = br.Buttons
		}
		if br.Input != nil {
			res.Input = br.Input
		}
		break
	}

	return res
}

func (e *Evaluator) matches(node *graph.Node, br *graph.Branch, vars map[string]string) bool {
	switch br.Predicate {
	case graph.PredicateVarExists:
		return e.fold(br, func(name string) bool {
			_, ok := vars[name]
			return ok
		})
	case graph.PredicateVarMissing:
		return e.fold(br, func(name string) bool {
			_, ok := vars[name]
			return !ok
		})
	case graph.PredicateVarEquals:
		return e.fold(br, func(name string) bool {
			v, ok := vars[name]
			return ok && v == br.Value
		})
	case graph.PredicateVarContains:
		return e.fold(br, func(name string) bool {
			v, ok := vars[name]
			return ok && strings.Contains(v, br.Value)
		})
	case graph.PredicateFirstVisit:
		_, visited := vars[VisitMarker(node.ID)]
		return !visited
	case graph.PredicateReturning:
		_, visited := vars[VisitMarker(node.ID)]
		return visited
	case graph.PredicateExpression:
		return e.evalExpression(br.Expression, vars)
	default:
		e.log.Warn("unknown branch predicate treated as non-matching",
			slog.String("node_id", node.ID), slog.String("predicate", string(br.Predicate)))
		return false
	}
}

// fold applies check to each listed variable and combines the results per
// the branch's AND/OR mode. A branch with no variables never matches.
func (e *Evaluator) fold(br *graph.Branch, check func(name string) bool) bool {
	if len(br.Variables) == 0 {
		return false
	}

	if br.Combine == graph.CombineAny {
		for _, name := range br.Variables {
			if check(name) {
				return true
			}
		}
		return false
	}

	for _, name := range br.Variables {
		if !check(name) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evalExpression(src string, vars map[string]string) bool {
	src = strings.TrimSpace(src)
	if src == "" {
		return false
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	out, err := expr.Eval(src, env)
	if err != nil {
		e.log.Warn("branch expression failed, treated as non-matching",
			slog.String("expression", src), slog.Any("error", err))
		return false
	}

	b, ok := out.(bool)
	if !ok {
		e.log.Warn("branch expression did not produce a boolean",
			slog.String("expression", src))
		return false
	}
	return b
}

// orderedBranches sorts descending by priority with a stable sort, so
// declaration order breaks ties.
func orderedBranches(branches []graph.Branch) []*graph.Branch {
	out := make([]*graph.Branch, len(branches))
	for i := range branches {
		out[i] = &branches[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
