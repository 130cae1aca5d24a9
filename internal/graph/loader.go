package graph

import (
	"encoding/json"
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
)

// Document is the serialized form exported by the visual editor.
type Document struct {
	Name        string       `json:"name,omitempty"`
	Nodes       []Node       `json:"nodes" validate:"required,min=1,dive"`
	Connections []Connection `json:"connections,omitempty" validate:"dive"`
}

// Parse decodes and validates a serialized graph document and builds the
// immutable graph.
func Parse(data []byte) (*Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode graph document: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("validate graph document: %w", err)
	}

	normalize(doc.Nodes)

	g, err := Build(doc.Nodes, doc.Connections)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	return g, nil
}

// Load reads a graph document from disk.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}

	return Parse(data)
}

// normalize fills editor-omitted defaults so downstream code never branches
// on zero values.
func normalize(nodes []Node) {
	for i := range nodes {
		data := &nodes[i].Data

		if data.Keyboard == "" {
			if len(data.Buttons) > 0 {
				data.Keyboard = KeyboardInline
			} else {
				data.Keyboard = KeyboardNone
			}
		}

		for j := range data.Buttons {
			if data.Buttons[j].Action == "" {
				data.Buttons[j].Action = ActionDefault
			}
		}

		for j := range data.Branches {
			if data.Branches[j].Combine == "" {
				data.Branches[j].Combine = CombineAll
			}
			for k := range data.Branches[j].Buttons {
				if data.Branches[j].Buttons[k].Action == "" {
					data.Branches[j].Buttons[k].Action = ActionDefault
				}
			}
		}
	}
}
