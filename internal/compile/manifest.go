// Package compile produces the routing manifest for a conversation graph:
// the single artifact the runtime router needs to dispatch button presses.
// All compilation state lives in an explicit Context so compiling several
// graphs in one process can never leak identifiers between them.
package compile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/keyboard"
)

// Entry describes the routing identifiers emitted for one node.
type Entry struct {
	NodeID        string `json:"node_id"`
	Alias         string `json:"alias"`
	Command       string `json:"command,omitempty"`
	TogglePrefix  string `json:"toggle_prefix,omitempty"`
	CommitPayload string `json:"commit_payload,omitempty"`
}

// Manifest maps every node to its routing identifiers.
type Manifest struct {
	GraphName string `json:"graph_name,omitempty"`
	// EntryNode is the node behind the /start command, empty when the graph
	// declares none.
	EntryNode string  `json:"entry_node,omitempty"`
	Entries   []Entry `json:"entries"`
}

// Context carries per-compilation state. A fresh Context per graph replaces
// any process-global "already emitted" tracking.
type Context struct {
	graph   *graph.Graph
	emitted map[string]bool
}

// NewContext starts a compilation of the given graph.
func NewContext(g *graph.Graph) *Context {
	return &Context{
		graph:   g,
		emitted: make(map[string]bool),
	}
}

// Emit produces the manifest entry for one node, at most once per Context.
func (c *Context) Emit(nodeID string) (Entry, error) {
	if c.emitted[nodeID] {
		return Entry{}, fmt.Errorf("node %q already emitted in this compilation", nodeID)
	}

	node := c.graph.Node(nodeID)
	if node == nil {
		return Entry{}, fmt.Errorf("unknown node %q", nodeID)
	}

	alias, ok := c.graph.Aliases().Alias(nodeID)
	if !ok {
		return Entry{}, fmt.Errorf("node %q has no routing alias", nodeID)
	}

	entry := Entry{NodeID: nodeID, Alias: alias}

	if node.Type == graph.NodeCommand {
		for name, id := range c.graph.Commands() {
			if id == nodeID {
				entry.Command = "/" + name
				break
			}
		}
	}

	if ms := node.Data.MultiSelect; ms != nil && ms.Enabled {
		entry.TogglePrefix = keyboard.TogglePrefix + alias + ":"
		commit, err := keyboard.EncodeCommit(alias)
		if err != nil {
			return Entry{}, fmt.Errorf("node %q: %w", nodeID, err)
		}
		entry.CommitPayload = commit
	}

	c.emitted[nodeID] = true
	return entry, nil
}

// BuildManifest emits every node of the graph.
func BuildManifest(g *graph.Graph, name string) (*Manifest, error) {
	ctx := NewContext(g)

	m := &Manifest{GraphName: name, EntryNode: g.Entry()}
	for _, id := range g.NodeIDs() {
		entry, err := ctx.Emit(id)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, entry)
	}

	sort.Slice(m.Entries, func(i, j int) bool {
		return m.Entries[i].NodeID < m.Entries[j].NodeID
	})

	return m, nil
}

// WriteFile serializes the manifest as indented JSON.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
