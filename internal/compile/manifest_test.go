package compile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botweaver/botweaver/internal/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()

	nodes := []graph.Node{
		{ID: "start", Type: graph.NodeCommand, Data: graph.NodeData{Command: "/start", Text: "Hi"}},
		{ID: "interests", Type: graph.NodeMessage, Data: graph.NodeData{
			Text: "Pick",
			Buttons: []graph.Button{
				{ID: "news", Text: "News", Action: graph.ActionToggle},
			},
			MultiSelect: &graph.MultiSelectConfig{Enabled: true, Variable: "interests"},
		}},
		{ID: "Main Menu", Type: graph.NodeMessage, Data: graph.NodeData{Text: "Menu"}},
	}

	g, err := graph.Build(nodes, nil)
	require.NoError(t, err)
	return g
}

func TestBuildManifest(t *testing.T) {
	m, err := BuildManifest(sampleGraph(t), "sample")
	require.NoError(t, err)

	assert.Equal(t, "sample", m.GraphName)
	assert.Equal(t, "start", m.EntryNode)
	require.Len(t, m.Entries, 3)

	byID := make(map[string]Entry, len(m.Entries))
	for _, e := range m.Entries {
		byID[e.NodeID] = e
	}

	start := byID["start"]
	assert.Equal(t, "start", start.Alias)
	assert.Equal(t, "/start", start.Command)
	assert.Empty(t, start.TogglePrefix)

	interests := byID["interests"]
	assert.Equal(t, "interests", interests.Alias)
	assert.Equal(t, "ms:interests:", interests.TogglePrefix)
	assert.Equal(t, "msdone:interests", interests.CommitPayload)

	menu := byID["Main Menu"]
	assert.Equal(t, "main_menu", menu.Alias)
	assert.Empty(t, menu.Command)
}

func TestBuildManifest_SortedByNodeID(t *testing.T) {
	m, err := BuildManifest(sampleGraph(t), "sample")
	require.NoError(t, err)

	assert.Equal(t, "Main Menu", m.Entries[0].NodeID)
	assert.Equal(t, "interests", m.Entries[1].NodeID)
	assert.Equal(t, "start", m.Entries[2].NodeID)
}

func TestBuildManifest_NoEntryCommand(t *testing.T) {
	g, err := graph.Build([]graph.Node{
		{ID: "lonely", Type: graph.NodeMessage, Data: graph.NodeData{Text: "hi"}},
	}, nil)
	require.NoError(t, err)

	m, err := BuildManifest(g, "headless")
	require.NoError(t, err)
	assert.Empty(t, m.EntryNode)
}

func TestContext_EmitOncePerNode(t *testing.T) {
	ctx := NewContext(sampleGraph(t))

	_, err := ctx.Emit("start")
	require.NoError(t, err)

	_, err = ctx.Emit("start")
	assert.ErrorContains(t, err, "already emitted")
}

func TestContext_SeparateCompilationsDoNotShareState(t *testing.T) {
	g := sampleGraph(t)

	first := NewContext(g)
	_, err := first.Emit("start")
	require.NoError(t, err)

	second := NewContext(g)
	_, err = second.Emit("start")
	assert.NoError(t, err)
}

func TestContext_UnknownNode(t *testing.T) {
	ctx := NewContext(sampleGraph(t))
	_, err := ctx.Emit("ghost")
	assert.ErrorContains(t, err, "unknown node")
}

func TestManifest_WriteFile(t *testing.T) {
	m, err := BuildManifest(sampleGraph(t), "sample")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample.manifest.json")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Manifest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.Entries, decoded.Entries)
}
