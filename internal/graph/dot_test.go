package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportDOT(t *testing.T) {
	g, err := Build([]Node{
		{ID: "start", Type: NodeCommand, Data: NodeData{Command: "/start", Text: "Hi"}},
		{ID: "menu", Type: NodeMessage, Data: NodeData{
			Text: "Pick one",
			Buttons: []Button{
				{ID: "b1", Text: "About", Action: ActionNavigate, Target: "about"},
			},
		}},
		{ID: "about", Type: NodeMessage, Data: NodeData{Text: "About us", AutoNext: "menu"}},
	}, []Connection{
		{Source: "start", Target: "menu"},
	})
	require.NoError(t, err)

	out, err := g.ExportDOT("onboarding")
	require.NoError(t, err)

	assert.Contains(t, out, "digraph onboarding")
	assert.Contains(t, out, `"start"`)
	assert.Contains(t, out, `"menu"`)
	assert.Contains(t, out, `"about"`)
	// Commands render as ovals, everything else as boxes.
	assert.Contains(t, out, "oval")
	assert.Contains(t, out, "box")
	// Connection fallback, button navigation, auto-transition.
	assert.Contains(t, out, "->")
	assert.Contains(t, out, "dashed")
	assert.Contains(t, out, "dotted")
}

func TestExportDOT_DefaultName(t *testing.T) {
	g, err := Build([]Node{
		{ID: "only", Type: NodeMessage, Data: NodeData{Text: "x"}},
	}, nil)
	require.NoError(t, err)

	out, err := g.ExportDOT("")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph conversation")
}
