package condition

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botweaver/botweaver/internal/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func node(branches ...graph.Branch) *graph.Node {
	return &graph.Node{
		ID:   "greeting",
		Type: graph.NodeMessage,
		Data: graph.NodeData{Text: "default text", Branches: branches},
	}
}

func TestEvaluate_HighestPriorityWins(t *testing.T) {
	e := NewEvaluator(testLogger())

	n := node(
		graph.Branch{
			ID: "low", Priority: 5,
			Predicate: graph.PredicateVarExists, Variables: []string{"name"},
			Combine: graph.CombineAll, Text: "low",
		},
		graph.Branch{
			ID: "high", Priority: 10,
			Predicate: graph.PredicateVarExists, Variables: []string{"name"},
			Combine: graph.CombineAll, Text: "high",
		},
	)

	res := e.Evaluate(n, map[string]string{"name": "Alice"})
	require.NotNil(t, res.Branch)
	assert.Equal(t, "high", res.Branch.ID)
	assert.Equal(t, "high", res.Text)
}

func TestEvaluate_DeclarationOrderBreaksTies(t *testing.T) {
	e := NewEvaluator(testLogger())

	n := node(
		graph.Branch{
			ID: "first", Priority: 5,
			Predicate: graph.PredicateVarExists, Variables: []string{"name"},
			Combine: graph.CombineAll,
		},
		graph.Branch{
			ID: "second", Priority: 5,
			Predicate: graph.PredicateVarExists, Variables: []string{"name"},
			Combine: graph.CombineAll,
		},
	)

	res := e.Evaluate(n, map[string]string{"name": "Alice"})
	require.NotNil(t, res.Branch)
	assert.Equal(t, "first", res.Branch.ID)
}

func TestEvaluate_NoMatchKeepsNodeDefaults(t *testing.T) {
	e := NewEvaluator(testLogger())

	n := node(graph.Branch{
		ID: "gated", Priority: 1,
		Predicate: graph.PredicateVarExists, Variables: []string{"missing"},
		Combine: graph.CombineAll, Text: "override",
	})
	n.Data.Buttons = []graph.Button{{ID: "b1", Text: "Go"}}

	res := e.Evaluate(n, map[string]string{})
	assert.Nil(t, res.Branch)
	assert.Equal(t, "default text", res.Text)
	assert.Len(t, res.Buttons, 1)
}

func TestEvaluate_Predicates(t *testing.T) {
	e := NewEvaluator(testLogger())
	vars := map[string]string{
		"name":      "Alice",
		"interests": "news,tech",
	}

	testCases := []struct {
		name    string
		branch  graph.Branch
		matches bool
	}{
		{
			name: "variable_exists",
			branch: graph.Branch{Predicate: graph.PredicateVarExists,
				Variables: []string{"name"}, Combine: graph.CombineAll},
			matches: true,
		},
		{
			name: "variable_missing",
			branch: graph.Branch{Predicate: graph.PredicateVarMissing,
				Variables: []string{"phone"}, Combine: graph.CombineAll},
			matches: true,
		},
		{
			name: "variable_equals",
			branch: graph.Branch{Predicate: graph.PredicateVarEquals,
				Variables: []string{"name"}, Value: "Alice", Combine: graph.CombineAll},
			matches: true,
		},
		{
			name: "variable_equals mismatch",
			branch: graph.Branch{Predicate: graph.PredicateVarEquals,
				Variables: []string{"name"}, Value: "Bob", Combine: graph.CombineAll},
			matches: false,
		},
		{
			name: "variable_contains",
			branch: graph.Branch{Predicate: graph.PredicateVarContains,
				Variables: []string{"interests"}, Value: "tech", Combine: graph.CombineAll},
			matches: true,
		},
		{
			name: "empty variable list never matches",
			branch: graph.Branch{Predicate: graph.PredicateVarExists,
				Combine: graph.CombineAll},
			matches: false,
		},
		{
			name:    "unknown predicate never matches",
			branch:  graph.Branch{Predicate: "sorcery", Variables: []string{"name"}},
			matches: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.branch.Text = "matched"
			res := e.Evaluate(node(tc.branch), vars)
			if tc.matches {
				assert.NotNil(t, res.Branch)
			} else {
				assert.Nil(t, res.Branch)
			}
		})
	}
}

func TestEvaluate_CombineModes(t *testing.T) {
	e := NewEvaluator(testLogger())
	vars := map[string]string{"name": "Alice"}

	all := graph.Branch{
		Predicate: graph.PredicateVarExists,
		Variables: []string{"name", "phone"},
		Combine:   graph.CombineAll,
	}
	res := e.Evaluate(node(all), vars)
	assert.Nil(t, res.Branch, "all requires every variable")

	anyMode := all
	anyMode.Combine = graph.CombineAny
	res = e.Evaluate(node(anyMode), vars)
	assert.NotNil(t, res.Branch, "any requires a single variable")
}

func TestEvaluate_VisitPredicates(t *testing.T) {
	e := NewEvaluator(testLogger())

	first := graph.Branch{Predicate: graph.PredicateFirstVisit, Text: "welcome"}
	returning := graph.Branch{Predicate: graph.PredicateReturning, Text: "welcome back"}

	fresh := map[string]string{}
	res := e.Evaluate(node(first, returning), fresh)
	require.NotNil(t, res.Branch)
	assert.Equal(t, "welcome", res.Text)

	seen := map[string]string{VisitMarker("greeting"): "1"}
	res = e.Evaluate(node(first, returning), seen)
	require.NotNil(t, res.Branch)
	assert.Equal(t, "welcome back", res.Text)
}

func TestEvaluate_Expression(t *testing.T) {
	e := NewEvaluator(testLogger())
	vars := map[string]string{"plan": "pro"}

	testCases := []struct {
		name       string
		expression string
		matches    bool
	}{
		{name: "true comparison", expression: `plan == "pro"`, matches: true},
		{name: "false comparison", expression: `plan == "free"`, matches: false},
		{name: "broken expression", expression: `plan ==`, matches: false},
		{name: "non-boolean result", expression: `plan`, matches: false},
		{name: "empty expression", expression: ``, matches: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			br := graph.Branch{Predicate: graph.PredicateExpression, Expression: tc.expression}
			res := e.Evaluate(node(br), vars)
			if tc.matches {
				assert.NotNil(t, res.Branch)
			} else {
				assert.Nil(t, res.Branch)
			}
		})
	}
}

func TestVisitMarker(t *testing.T) {
	assert.Equal(t, "_visited_main_menu", VisitMarker("Main Menu"))
}
