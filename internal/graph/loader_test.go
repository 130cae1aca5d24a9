package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NormalizesDefaults(t *testing.T) {
	doc := []byte(`{
		"name": "sample",
		"nodes": [
			{
				"id": "start",
				"type": "command",
				"data": {
					"command": "/start",
					"text": "Hi",
					"buttons": [
						{"id": "b1", "text": "Go", "target": "next"}
					]
				}
			},
			{"id": "next", "type": "message", "data": {"text": "Done"}}
		],
		"connections": [{"source": "start", "target": "next"}]
	}`)

	g, err := Parse(doc)
	require.NoError(t, err)

	start := g.Node("start")
	require.NotNil(t, start)
	assert.Equal(t, KeyboardInline, start.Data.Keyboard)
	assert.Equal(t, ActionDefault, start.Data.Buttons[0].Action)

	next := g.Node("next")
	require.NotNil(t, next)
	assert.Equal(t, KeyboardNone, next.Data.Keyboard)
}

func TestParse_RejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [`))
	assert.ErrorContains(t, err, "decode graph document")
}

func TestParse_RejectsEmptyGraph(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": []}`))
	assert.ErrorContains(t, err, "validate graph document")
}

func TestParse_RejectsMissingNodeType(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [{"id": "a", "data": {"text": "hi"}}]}`))
	assert.Error(t, err)
}
