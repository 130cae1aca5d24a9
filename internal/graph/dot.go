package graph

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// ExportDOT renders the conversation graph as Graphviz DOT for operators
// inspecting a compiled bot. Solid edges are connection fallbacks, dashed
// edges are button navigations, dotted edges are auto-transitions.
func (g *Graph) ExportDOT(name string) (string, error) {
	if name == "" {
		name = "conversation"
	}

	gv := gographviz.NewGraph()
	if err := gv.SetName(name); err != nil {
		return "", fmt.Errorf("set graph name: %w", err)
	}
	if err := gv.SetDir(true); err != nil {
		return "", fmt.Errorf("set graph directed: %w", err)
	}

	for _, id := range g.order {
		n := g.nodes[id]
		attrs := map[string]string{
			"label": strconv.Quote(fmt.Sprintf("%s\\n(%s)", id, n.Type)),
			"shape": "box",
		}
		if n.Type == NodeCommand {
			attrs["shape"] = "oval"
		}
		if err := gv.AddNode(name, strconv.Quote(id), attrs); err != nil {
			return "", fmt.Errorf("add node %q: %w", id, err)
		}
	}

	addEdge := func(src, dst string, attrs map[string]string) error {
		if g.nodes[dst] == nil {
			return nil
		}
		return gv.AddEdge(strconv.Quote(src), strconv.Quote(dst), true, attrs)
	}

	for _, id := range g.order {
		n := g.nodes[id]

		if target, ok := g.next[id]; ok {
			if err := addEdge(id, target, nil); err != nil {
				return "", err
			}
		}

		for _, b := range n.Data.Buttons {
			if b.Action != ActionNavigate || b.Target == "" {
				continue
			}
			if err := addEdge(id, b.Target, map[string]string{
				"style": "dashed",
				"label": strconv.Quote(b.Text),
			}); err != nil {
				return "", err
			}
		}

		if n.Data.AutoNext != "" {
			if err := addEdge(id, n.Data.AutoNext, map[string]string{"style": "dotted"}); err != nil {
				return "", err
			}
		}
	}

	return gv.String(), nil
}
