package dependencies

import (
	"sort"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// EdgeType distinguishes required from optional dependency edges.
type EdgeType string

const (
	EdgeRequired EdgeType = "required"
	EdgeOptional EdgeType = "optional"
)

// Edge points from a dependent to a dependency it needs loaded first.
type Edge struct {
	From string // dependent key
	To   string // dependency key
	Type EdgeType
}

// Node represents a node in the dependency graph
type Node struct {
	Key      string
	Metadata *plugins.Metadata
	Requires []Edge
}

// DependencyGraph is built fresh for each resolution pass. Keys are
// normalized plugin ids.
type DependencyGraph struct {
	nodes      map[string]*Node
	dependents map[string][]string
}

// NewDependencyGraph creates an empty dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:      make(map[string]*Node),
		dependents: make(map[string][]string),
	}
}

// BuildGraph creates nodes for every candidate with an id and edges for
// every dependency that points at another node. Failed candidates are
// skipped unless includeFailed is set.
func BuildGraph(candidates []*plugins.Metadata, includeFailed bool) *DependencyGraph {
	g := NewDependencyGraph()
	for _, meta := range candidates {
		if meta.ID() == "" || (!includeFailed && meta.Status == plugins.StatusFailed) {
			continue
		}
		g.AddNode(meta)
	}

	for _, node := range g.nodes {
		for _, dep := range node.Metadata.Manifest.AllDependencies() {
			to := plugins.NormalizeID(dep.UniqueID)
			if _, ok := g.nodes[to]; !ok {
				continue
			}
			edgeType := EdgeOptional
			if dep.Required() {
				edgeType = EdgeRequired
			}
			g.AddEdge(node.Key, to, edgeType)
		}
	}
	return g
}

// AddNode adds a node to the graph
func (g *DependencyGraph) AddNode(meta *plugins.Metadata) *Node {
	key := plugins.NormalizeID(meta.ID())
	if existing, ok := g.nodes[key]; ok {
		return existing
	}
	node := &Node{Key: key, Metadata: meta}
	g.nodes[key] = node
	return node
}

// AddEdge records that from needs to be loaded after to.
func (g *DependencyGraph) AddEdge(from, to string, edgeType EdgeType) {
	node, ok := g.nodes[from]
	if !ok {
		return
	}
	for _, e := range node.Requires {
		if e.To == to {
			return
		}
	}
	node.Requires = append(node.Requires, Edge{From: from, To: to, Type: edgeType})
	g.dependents[to] = append(g.dependents[to], from)
}

// GetNode retrieves a node from the graph
func (g *DependencyGraph) GetNode(id string) *Node {
	return g.nodes[plugins.NormalizeID(id)]
}

// Nodes returns all nodes ordered by display name.
func (g *DependencyGraph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return plugins.LessByDisplayName(nodes[i].Metadata, nodes[j].Metadata)
	})
	return nodes
}

// Edges returns every edge, ordered by dependent then dependency.
func (g *DependencyGraph) Edges() []Edge {
	var edges []Edge
	for _, node := range g.Nodes() {
		sorted := append([]Edge(nil), node.Requires...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].To < sorted[j].To })
		edges = append(edges, sorted...)
	}
	return edges
}

// GetDependents returns keys of nodes with an edge to id.
func (g *DependencyGraph) GetDependents(id string) []string {
	return append([]string(nil), g.dependents[plugins.NormalizeID(id)]...)
}

// GetTransitiveDependencies returns the keys of everything id needs, directly or not.
func (g *DependencyGraph) GetTransitiveDependencies(id string) []string {
	visited := make(map[string]bool)
	var result []string

	var traverse func(string)
	traverse = func(key string) {
		node := g.nodes[key]
		if node == nil {
			return
		}
		for _, e := range node.Requires {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			result = append(result, e.To)
			traverse(e.To)
		}
	}

	traverse(plugins.NormalizeID(id))
	sort.Strings(result)
	return result
}

// Neighborhood returns the part of the graph around id: the node, everything
// it needs, and the nodes that need it directly. It returns nil when id isn't
// in the graph.
func (g *DependencyGraph) Neighborhood(id string) *DependencyGraph {
	center := g.GetNode(id)
	if center == nil {
		return nil
	}

	keep := []string{center.Key}
	keep = append(keep, g.GetTransitiveDependencies(id)...)
	keep = append(keep, g.GetDependents(id)...)

	sub := NewDependencyGraph()
	for _, key := range keep {
		sub.AddNode(g.nodes[key].Metadata)
	}
	for _, key := range keep {
		for _, e := range g.nodes[key].Requires {
			if sub.nodes[e.To] != nil {
				sub.AddEdge(e.From, e.To, e.Type)
			}
		}
	}
	return sub
}

// StronglyConnected returns the strongly connected components among keys
// (Tarjan). Each component is sorted; components with a single node are
// only returned when the node depends on itself.
func (g *DependencyGraph) StronglyConnected(keys map[string]bool) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.nodes[v].Requires {
			if !keys[e.To] {
				continue
			}
			if _, seen := indices[e.To]; !seen {
				strongConnect(e.To)
				lowlink[v] = min(lowlink[v], lowlink[e.To])
			} else if onStack[e.To] {
				lowlink[v] = min(lowlink[v], indices[e.To])
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			if len(component) > 1 || g.hasEdge(v, v) {
				sort.Strings(component)
				components = append(components, component)
			}
		}
	}

	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	for _, key := range ordered {
		if _, seen := indices[key]; !seen && g.nodes[key] != nil {
			strongConnect(key)
		}
	}
	return components
}

func (g *DependencyGraph) hasEdge(from, to string) bool {
	for _, e := range g.nodes[from].Requires {
		if e.To == to {
			return true
		}
	}
	return false
}

// FindCycle returns a dependency path from start back to start using only
// nodes in within, or nil when there is none.
func (g *DependencyGraph) FindCycle(start string, within map[string]bool) []string {
	prev := map[string]string{}
	queue := []string{start}
	visited := map[string]bool{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		requires := append([]Edge(nil), g.nodes[current].Requires...)
		sort.Slice(requires, func(i, j int) bool { return requires[i].To < requires[j].To })
		for _, e := range requires {
			if !within[e.To] {
				continue
			}
			if e.To == start {
				path := []string{start}
				for at := current; at != start; at = prev[at] {
					path = append(path, at)
				}
				// path is start, current, ..., reversed after the first element
				for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return append(path, start)
			}
			if !visited[e.To] {
				visited[e.To] = true
				prev[e.To] = current
				queue = append(queue, e.To)
			}
		}
	}
	return nil
}
