package multiselect

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeVars struct {
	mu     sync.Mutex
	values map[int64]map[string]string
}

func newFakeVars() *fakeVars {
	return &fakeVars{values: make(map[int64]map[string]string)}
}

func (f *fakeVars) Get(_ context.Context, userID int64) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]string, len(f.values[userID]))
	for k, v := range f.values[userID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeVars) Set(_ context.Context, userID int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.values[userID] == nil {
		f.values[userID] = make(map[string]string)
	}
	f.values[userID][key] = value
	return nil
}

func interestsNode() (*graph.Node, *graph.MultiSelectConfig) {
	cfg := &graph.MultiSelectConfig{
		Enabled:  true,
		Variable: "interests",
		NextNode: "main-menu",
	}
	node := &graph.Node{
		ID:   "interests",
		Type: graph.NodeMessage,
		Data: graph.NodeData{
			Text: "Pick topics",
			Buttons: []graph.Button{
				{ID: "News Feed", Text: "News", Action: graph.ActionToggle},
				{ID: "tech", Text: "Tech", Action: graph.ActionToggle},
			},
			MultiSelect: cfg,
		},
	}
	return node, cfg
}

func TestAccumulator_SeedsFromDurableValue(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	varstore := newFakeVars()
	require.NoError(t, varstore.Set(ctx, 42, "interests", "music, tech"))

	a := NewAccumulator(store, varstore, testLogger())
	node, cfg := interestsNode()

	sel, err := a.Begin(ctx, 42, node, cfg, node.Data.Buttons)
	require.NoError(t, err)

	assert.Contains(t, sel.Chosen, "music")
	assert.Contains(t, sel.Chosen, "tech")
	assert.Len(t, sel.Chosen, 2)
}

func TestAccumulator_ToggleIsIdempotentPair(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	a := NewAccumulator(store, newFakeVars(), testLogger())
	node, cfg := interestsNode()

	sel, err := a.Begin(ctx, 42, node, cfg, node.Data.Buttons)
	require.NoError(t, err)

	chosen, err := a.Toggle(ctx, 42, sel, "tech")
	require.NoError(t, err)
	assert.Contains(t, chosen, "tech")

	chosen, err = a.Toggle(ctx, 42, sel, "tech")
	require.NoError(t, err)
	assert.NotContains(t, chosen, "tech")
	assert.Empty(t, chosen)
}

func TestAccumulator_ToggleMapsPayloadChoiceToButtonID(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	a := NewAccumulator(store, newFakeVars(), testLogger())
	node, cfg := interestsNode()

	sel, err := a.Begin(ctx, 42, node, cfg, node.Data.Buttons)
	require.NoError(t, err)

	// The payload carries the sanitized form of the "News Feed" button id.
	chosen, err := a.Toggle(ctx, 42, sel, graph.SanitizeChoiceID("News Feed"))
	require.NoError(t, err)
	assert.Contains(t, chosen, "News Feed")
}

func TestAccumulator_ToggleUsesRenderedButtons(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	a := NewAccumulator(store, newFakeVars(), testLogger())
	node, cfg := interestsNode()

	// A branch rendered its own button list in place of the node's.
	rendered := []graph.Button{
		{ID: "Pro Topics", Text: "Pro", Action: graph.ActionToggle},
	}
	sel, err := a.Begin(ctx, 42, node, cfg, rendered)
	require.NoError(t, err)
	assert.Equal(t, rendered, sel.Buttons)

	chosen, err := a.Toggle(ctx, 42, sel, graph.SanitizeChoiceID("Pro Topics"))
	require.NoError(t, err)
	assert.Contains(t, chosen, "Pro Topics", "payload maps onto the rendered list, not the node defaults")
}

func TestAccumulator_CommitMergesWithDurableValue(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	varstore := newFakeVars()
	require.NoError(t, varstore.Set(ctx, 42, "interests", "music"))

	a := NewAccumulator(store, varstore, testLogger())
	node, cfg := interestsNode()

	sel, err := a.Begin(ctx, 42, node, cfg, node.Data.Buttons)
	require.NoError(t, err)

	_, err = a.Toggle(ctx, 42, sel, "tech")
	require.NoError(t, err)

	merged, next, err := a.Commit(ctx, 42, sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"music", "tech"}, merged, "durable order first, new choices after")
	assert.Equal(t, "main-menu", next)

	vars, _ := varstore.Get(ctx, 42)
	assert.Equal(t, "music,tech", vars["interests"])

	_, err = store.Get(ctx, 42)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAccumulator_CommitIsAdditiveOnly(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	varstore := newFakeVars()
	require.NoError(t, varstore.Set(ctx, 42, "interests", "music,tech"))

	a := NewAccumulator(store, varstore, testLogger())
	node, cfg := interestsNode()

	sel, err := a.Begin(ctx, 42, node, cfg, node.Data.Buttons)
	require.NoError(t, err)

	// Untick a previously persisted choice, then commit.
	_, err = a.Toggle(ctx, 42, sel, "tech")
	require.NoError(t, err)

	merged, _, err := a.Commit(ctx, 42, sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"music", "tech"}, merged, "commit never removes a persisted choice")
}

func TestAccumulator_EmptyCommitKeepsDurableValue(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	varstore := newFakeVars()
	a := NewAccumulator(store, varstore, testLogger())
	node, cfg := interestsNode()

	sel, err := a.Begin(ctx, 42, node, cfg, node.Data.Buttons)
	require.NoError(t, err)

	merged, next, err := a.Commit(ctx, 42, sel)
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.Equal(t, "main-menu", next)

	vars, _ := varstore.Get(ctx, 42)
	assert.Equal(t, "", vars["interests"])
}

func TestSplitList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "whitespace only", input: "  ", expected: nil},
		{name: "simple", input: "a,b", expected: []string{"a", "b"}},
		{name: "trims and drops empties", input: " a ,, b ,", expected: []string{"a", "b"}},
		{name: "deduplicates", input: "a,b,a", expected: []string{"a", "b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitList(tc.input))
		})
	}
}
