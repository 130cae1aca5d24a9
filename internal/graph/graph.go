// Package graph holds the immutable conversation graph model produced by the
// visual editor: nodes, connections, buttons and conditional branches. The
// model is built once per compilation and read concurrently afterwards.
package graph

import (
	"fmt"
	"strings"
)

// NodeType identifies what kind of bot state a node represents.
type NodeType string

const (
	NodeMessage     NodeType = "message"
	NodeCommand     NodeType = "command"
	NodePhoto       NodeType = "photo"
	NodeVideo       NodeType = "video"
	NodeAudio       NodeType = "audio"
	NodeDocument    NodeType = "document"
	NodeAdminAction NodeType = "admin_action"
)

// ButtonAction identifies what pressing a button does.
type ButtonAction string

const (
	ActionNavigate   ButtonAction = "navigate"
	ActionOpenURL    ButtonAction = "open_url"
	ActionRunCommand ButtonAction = "run_command"
	ActionToggle     ButtonAction = "toggle_selection"
	ActionDefault    ButtonAction = "default"
)

// KeyboardKind selects the rendering mode for a node's buttons.
type KeyboardKind string

const (
	KeyboardNone   KeyboardKind = "none"
	KeyboardInline KeyboardKind = "inline"
	KeyboardReply  KeyboardKind = "reply"
)

// Button is one pressable choice attached to a node or branch.
type Button struct {
	ID             string       `json:"id" validate:"required"`
	Text           string       `json:"text" validate:"required"`
	Action         ButtonAction `json:"action"`
	Target         string       `json:"target,omitempty"`
	URL            string       `json:"url,omitempty"`
	SkipInput      bool         `json:"skipDataCollection,omitempty"`
	HideAfterClick bool         `json:"hideAfterClick,omitempty"`
}

// Predicate identifies how a conditional branch inspects user variables.
type Predicate string

const (
	PredicateVarExists   Predicate = "variable_exists"
	PredicateVarEquals   Predicate = "variable_equals"
	PredicateVarMissing  Predicate = "variable_missing"
	PredicateVarContains Predicate = "variable_contains"
	PredicateFirstVisit  Predicate = "first_visit"
	PredicateReturning   Predicate = "returning_visit"
	PredicateExpression  Predicate = "expression"
)

// Combine selects how a branch folds its per-variable checks.
type Combine string

const (
	CombineAll Combine = "all"
	CombineAny Combine = "any"
)

// Branch is a prioritized, predicate-gated override of a node's text,
// buttons and input configuration. Higher priority wins; ties are broken by
// declaration order.
type Branch struct {
	ID         string       `json:"id"`
	Priority   int          `json:"priority"`
	Predicate  Predicate    `json:"predicate"`
	Variables  []string     `json:"variables,omitempty"`
	Value      string       `json:"value,omitempty"`
	Expression string       `json:"expression,omitempty"`
	Combine    Combine      `json:"combine,omitempty"`
	Text       string       `json:"text,omitempty"`
	Buttons    []Button     `json:"buttons,omitempty"`
	Input      *InputConfig `json:"input,omitempty"`
}

// SkipRoute names a button text that bypasses validation and persistence
// while an input or multi-select session is open.
type SkipRoute struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// InputConfig describes a node's free-form input expectation.
type InputConfig struct {
	Enabled     bool        `json:"enabled"`
	Text        bool        `json:"text,omitempty"`
	Photo       bool        `json:"photo,omitempty"`
	Video       bool        `json:"video,omitempty"`
	Audio       bool        `json:"audio,omitempty"`
	Document    bool        `json:"document,omitempty"`
	Semantic    string      `json:"semantic,omitempty"` // "", "email", "phone", "number"
	MinLen      int         `json:"minLen,omitempty"`
	MaxLen      int         `json:"maxLen,omitempty"`
	Variable    string      `json:"variable,omitempty"`
	Persist     bool        `json:"persist"`
	RetryText   string      `json:"retryText,omitempty"`
	SuccessText string      `json:"successText,omitempty"`
	NextNode    string      `json:"nextNode,omitempty"`
	AddToLedger bool        `json:"addToLedger,omitempty"`
	Skip        []SkipRoute `json:"skipButtons,omitempty"`
}

// MultiSelectConfig describes a node's toggleable choice accumulation.
type MultiSelectConfig struct {
	Enabled  bool   `json:"enabled"`
	Variable string `json:"variable" validate:"required_with=Enabled"`
	DoneText string `json:"doneText,omitempty"`
	NextNode string `json:"nextNode,omitempty"`
}

// MediaRef points at a media asset attached to a node.
type MediaRef struct {
	Kind    string `json:"kind"` // photo, video, audio, document
	URL     string `json:"url,omitempty"`
	FileID  string `json:"fileId,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// NodeData is the per-node payload authored in the editor.
type NodeData struct {
	Text                string             `json:"text,omitempty"`
	Command             string             `json:"command,omitempty"`
	Buttons             []Button           `json:"buttons,omitempty"`
	Branches            []Branch           `json:"conditions,omitempty"`
	Keyboard            KeyboardKind       `json:"keyboard,omitempty"`
	OneTime             bool               `json:"oneTime,omitempty"`
	Resize              bool               `json:"resize,omitempty"`
	Input               *InputConfig       `json:"input,omitempty"`
	MultiSelect         *MultiSelectConfig `json:"multiSelect,omitempty"`
	AutoNext            string             `json:"autoNext,omitempty"`
	RedirectAfterCommit string             `json:"redirectAfterCommit,omitempty"`
	Media               []MediaRef         `json:"media,omitempty"`
}

// Node is one state of the conversation graph.
type Node struct {
	ID   string   `json:"id" validate:"required"`
	Type NodeType `json:"type" validate:"required"`
	Data NodeData `json:"data"`
}

// Connection is the default edge used when a node has no explicit
// button-driven exit.
type Connection struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Graph is the compiled, immutable conversation graph.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	next    map[string]string
	entry   string
	aliases *AliasTable
}

// Build assembles a Graph from raw nodes and connections, derives the routing
// alias table and verifies structural integrity. The returned graph must not
// be mutated.
func Build(nodes []Node, connections []Connection) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*Node, len(nodes)),
		order: make([]string, 0, len(nodes)),
		next:  make(map[string]string, len(connections)),
	}

	for i := range nodes {
		n := nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)

		if n.Type == NodeCommand && g.entry == "" && commandName(&n) == "start" {
			g.entry = n.ID
		}
	}

	for _, c := range connections {
		if _, ok := g.next[c.Source]; ok {
			return nil, fmt.Errorf("node %q has more than one outgoing connection", c.Source)
		}
		g.next[c.Source] = c.Target
	}

	aliases, err := BuildAliasTable(g.order)
	if err != nil {
		return nil, err
	}
	g.aliases = aliases

	if err := g.validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// NodeIDs returns node ids in declaration order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// NextOf returns the connection fallback target for a node, if any.
func (g *Graph) NextOf(id string) (string, bool) {
	target, ok := g.next[id]
	return target, ok
}

// Entry returns the id of the entry command node ("/start"), empty when the
// graph declares none.
func (g *Graph) Entry() string {
	return g.entry
}

// Aliases exposes the routing alias table built for this graph.
func (g *Graph) Aliases() *AliasTable {
	return g.aliases
}

// Commands returns command name → node id for every command node.
func (g *Graph) Commands() map[string]string {
	cmds := make(map[string]string)
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Type != NodeCommand {
			continue
		}
		if name := commandName(n); name != "" {
			cmds[name] = id
		}
	}
	return cmds
}

// ReplyRoutes maps button text to navigation target for every persistent
// (reply) keyboard in the graph. Reply buttons come back as plain message
// text, so the router needs a text-level route table. First declaration wins
// on duplicate labels.
func (g *Graph) ReplyRoutes() map[string]string {
	routes := make(map[string]string)
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Data.Keyboard != KeyboardReply {
			continue
		}
		for _, b := range n.Data.Buttons {
			if b.Target == "" || b.Text == "" {
				continue
			}
			if _, taken := routes[b.Text]; !taken {
				routes[b.Text] = b.Target
			}
		}
	}
	return routes
}

// validate checks every referenced target resolves to a known node.
func (g *Graph) validate() error {
	check := func(owner, target, role string) error {
		if target == "" {
			return nil
		}
		if _, ok := g.nodes[target]; !ok {
			return fmt.Errorf("node %q: %s target %q does not exist", owner, role, target)
		}
		return nil
	}

	for _, id := range g.order {
		n := g.nodes[id]

		if err := check(id, n.Data.AutoNext, "auto-transition"); err != nil {
			return err
		}
		if err := check(id, n.Data.RedirectAfterCommit, "post-commit redirect"); err != nil {
			return err
		}

		// Dangling button navigate targets degrade to no-op buttons at
		// render time, so they are a warning-level concern, not a build
		// failure. Skip routes and auto-transitions must resolve.

		if in := n.Data.Input; in != nil && in.Enabled {
			if err := check(id, in.NextNode, "input continuation"); err != nil {
				return err
			}
			for _, s := range in.Skip {
				if err := check(id, s.Target, "skip route"); err != nil {
					return err
				}
			}
		}

		if ms := n.Data.MultiSelect; ms != nil && ms.Enabled {
			if ms.Variable == "" {
				return fmt.Errorf("node %q: multi-select requires a target variable", id)
			}
			if err := check(id, ms.NextNode, "multi-select continuation"); err != nil {
				return err
			}
			if err := checkChoiceIDs(id, n.Data.Buttons); err != nil {
				return err
			}
			for _, br := range n.Data.Branches {
				if err := checkChoiceIDs(id, br.Buttons); err != nil {
					return err
				}
			}
		}

		for _, br := range n.Data.Branches {
			if in := br.Input; in != nil && in.Enabled {
				if err := check(id, in.NextNode, "branch input continuation"); err != nil {
					return err
				}
			}
		}
	}

	for source, target := range g.next {
		if _, ok := g.nodes[source]; !ok {
			return fmt.Errorf("connection source %q does not exist", source)
		}
		if _, ok := g.nodes[target]; !ok {
			return fmt.Errorf("connection target %q does not exist", target)
		}
	}

	return nil
}

// checkChoiceIDs rejects button lists whose ids stop being distinguishable
// once sanitized and truncated for toggle payloads. Toggles dispatch on the
// sanitized id, so a collision would silently flip the wrong choice.
func checkChoiceIDs(owner string, buttons []Button) error {
	seen := make(map[string]string, len(buttons))
	for _, b := range buttons {
		if b.Action == ActionOpenURL || b.Action == ActionRunCommand {
			continue
		}

		choice := SanitizeChoiceID(b.ID)
		if choice == "" {
			return fmt.Errorf("node %q: button id %q sanitizes to an empty toggle choice", owner, b.ID)
		}
		if prev, dup := seen[choice]; dup {
			return fmt.Errorf("node %q: button ids %q and %q collide as toggle choice %q", owner, prev, b.ID, choice)
		}
		seen[choice] = b.ID
	}
	return nil
}

// AcceptedKinds lists the event kinds an input config accepts. Text is the
// default when no media kind is enabled.
func (c *InputConfig) AcceptedKinds() []string {
	kinds := make([]string, 0, 5)
	if c.Photo {
		kinds = append(kinds, "photo")
	}
	if c.Video {
		kinds = append(kinds, "video")
	}
	if c.Audio {
		kinds = append(kinds, "audio")
	}
	if c.Document {
		kinds = append(kinds, "document")
	}
	if c.Text || len(kinds) == 0 {
		kinds = append([]string{"text"}, kinds...)
	}
	return kinds
}

func commandName(n *Node) string {
	name := n.Data.Command
	if name == "" {
		name = n.ID
	}
	return strings.TrimPrefix(strings.TrimSpace(name), "/")
}
