package dependencies

import (
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Type    string `json:"type"` // "mod", "content_pack"
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"` // "required", "optional"
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// ToCytoscape converts the graph for the status UI.
func (g *DependencyGraph) ToCytoscape() CytoscapeGraph {
	cytoGraph := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, len(g.nodes)),
		Edges: make([]CytoscapeEdge, 0),
	}

	for _, node := range g.Nodes() {
		nodeType := "mod"
		if node.Metadata.IsContentPack() {
			nodeType = "content_pack"
		}
		cytoGraph.Nodes = append(cytoGraph.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{
				ID:      node.Key,
				Name:    node.Metadata.DisplayName,
				Version: node.Metadata.Manifest.Version,
				Status:  string(node.Metadata.Status),
				Type:    nodeType,
			},
		})
	}

	for _, e := range g.Edges() {
		cytoGraph.Edges = append(cytoGraph.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:     e.From + "->" + e.To,
				Source: e.From,
				Target: e.To,
				Type:   string(e.Type),
			},
		})
	}

	return cytoGraph
}

// WriteDOT writes the graph in Graphviz format. Failed plugins are drawn in
// red and optional edges are dashed.
func (g *DependencyGraph) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph mods {\n")
	b.WriteString("  rankdir=LR;\n")

	for _, node := range g.Nodes() {
		attrs := []string{fmt.Sprintf(`label="%s\n%s"`, dotEscape(node.Metadata.DisplayName), dotEscape(node.Metadata.Manifest.Version))}
		if node.Metadata.Status == plugins.StatusFailed {
			attrs = append(attrs, "color=red")
		}
		if node.Metadata.IsContentPack() {
			attrs = append(attrs, "shape=box")
		}
		fmt.Fprintf(&b, "  %q [%s];\n", node.Key, strings.Join(attrs, ", "))
	}

	for _, e := range g.Edges() {
		if e.Type == EdgeOptional {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", e.From, e.To)
		} else {
			fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
		}
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func dotEscape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
