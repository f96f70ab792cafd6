package dependencies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// Resolver computes a safe load order for validated candidates.
type Resolver struct {
	log *logrus.Logger
}

// NewResolver creates a dependency resolver
func NewResolver(log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{log: log}
}

// Resolve returns the candidates that can be loaded, dependencies first.
// Candidates that can't be loaded are marked failed with
// ReasonMissingDependencies and left out of the result. Ties are broken by
// display name so the order is stable for identical input. Candidates that
// share an id fail with ReasonInvalidManifest, as in validation.
func (r *Resolver) Resolve(candidates []*plugins.Metadata) []*plugins.Metadata {
	plugins.RejectDuplicateIDs(candidates)
	byID := indexCandidates(candidates)

	r.failUnsatisfied(candidates, byID)

	graph := BuildGraph(candidates, false)
	order := r.sort(graph)

	resolved := make([]*plugins.Metadata, 0, len(order))
	for _, node := range order {
		resolved = append(resolved, node.Metadata)
	}
	return resolved
}

// indexCandidates maps normalized ids to the first candidate using them.
func indexCandidates(candidates []*plugins.Metadata) map[string]*plugins.Metadata {
	byID := make(map[string]*plugins.Metadata, len(candidates))
	for _, meta := range candidates {
		id := meta.ID()
		if id == "" {
			continue
		}
		key := plugins.NormalizeID(id)
		if _, exists := byID[key]; !exists {
			byID[key] = meta
		}
	}
	return byID
}

// failUnsatisfied marks candidates whose dependencies are missing, failed or
// too old. Each pass only sees failures from earlier passes, so failures
// cascade one level at a time and every phrase names the direct dependency.
func (r *Resolver) failUnsatisfied(candidates []*plugins.Metadata, byID map[string]*plugins.Metadata) {
	for {
		var failures []func()

		for _, meta := range candidates {
			if meta.Status != plugins.StatusPending {
				continue
			}
			if phrase := checkDependencies(meta, byID); phrase != "" {
				meta := meta
				failures = append(failures, func() {
					meta.SetFailed(plugins.ReasonMissingDependencies, phrase, "")
					r.log.WithField("mod", meta.DisplayName).Debugf("Skipped: %s", phrase)
				})
			}
		}

		if len(failures) == 0 {
			return
		}
		for _, apply := range failures {
			apply()
		}
	}
}

func checkDependencies(meta *plugins.Metadata, byID map[string]*plugins.Metadata) string {
	var missing []string
	var tooOld []string

	for _, dep := range meta.Manifest.AllDependencies() {
		target := byID[plugins.NormalizeID(dep.UniqueID)]

		switch {
		case target == nil:
			if dep.Required() {
				missing = append(missing, dep.UniqueID)
			}
		case target.Status == plugins.StatusFailed:
			if dep.Required() {
				return fmt.Sprintf("it needs the '%s' mod, which couldn't be loaded.", target.DisplayName)
			}
		case plugins.IsOlderThan(target.Manifest.Version, dep.MinimumVersion):
			tooOld = append(tooOld, fmt.Sprintf("%s (needs %s or later)", target.DisplayName, dep.MinimumVersion))
		}
	}

	if len(missing) > 0 {
		return fmt.Sprintf("it requires mods which aren't installed (%s).", strings.Join(missing, ", "))
	}
	if len(tooOld) > 0 {
		return fmt.Sprintf("it needs newer versions of some mods: %s.", strings.Join(tooOld, ", "))
	}
	return ""
}

// sort runs Kahn's algorithm over the graph. Whatever is left when no node
// is ready is part of, or depends on, a cycle and is marked failed.
func (r *Resolver) sort(graph *DependencyGraph) []*Node {
	inDegree := make(map[string]int, len(graph.nodes))
	for key, node := range graph.nodes {
		inDegree[key] = len(node.Requires)
	}

	var ready []*Node
	for key, degree := range inDegree {
		if degree == 0 {
			ready = insertSorted(ready, graph.nodes[key])
		}
	}

	order := make([]*Node, 0, len(graph.nodes))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		delete(inDegree, node.Key)

		for _, dependent := range graph.dependents[node.Key] {
			if _, pending := inDegree[dependent]; !pending {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertSorted(ready, graph.nodes[dependent])
			}
		}
	}

	if len(inDegree) > 0 {
		r.failCycles(graph, inDegree)
	}
	return order
}

func insertSorted(ready []*Node, node *Node) []*Node {
	i := sort.Search(len(ready), func(i int) bool {
		return plugins.LessByDisplayName(node.Metadata, ready[i].Metadata)
	})
	ready = append(ready, nil)
	copy(ready[i+1:], ready[i:])
	ready[i] = node
	return ready
}

func (r *Resolver) failCycles(graph *DependencyGraph, remaining map[string]int) {
	within := make(map[string]bool, len(remaining))
	for key := range remaining {
		within[key] = true
	}

	inCycle := make(map[string]bool)
	for _, component := range graph.StronglyConnected(within) {
		members := make(map[string]bool, len(component))
		for _, key := range component {
			members[key] = true
		}
		for _, key := range component {
			inCycle[key] = true
			path := graph.FindCycle(key, members)
			names := make([]string, 0, len(path))
			for _, k := range path {
				names = append(names, graph.nodes[k].Metadata.DisplayName)
			}
			phrase := fmt.Sprintf("its dependencies have a circular reference: %s.", strings.Join(names, " => "))
			graph.nodes[key].Metadata.SetFailed(plugins.ReasonMissingDependencies, phrase, "")
		}
	}

	keys := make([]string, 0, len(remaining))
	for key := range remaining {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		node := graph.nodes[key]
		if inCycle[key] {
			r.log.WithField("mod", node.Metadata.DisplayName).Debugf("Skipped: %s", node.Metadata.Error)
			continue
		}
		var blocked []string
		for _, e := range node.Requires {
			if within[e.To] {
				blocked = append(blocked, graph.nodes[e.To].Metadata.DisplayName)
			}
		}
		sort.Strings(blocked)
		phrase := fmt.Sprintf("it needs mods caught in a circular dependency (%s).", strings.Join(blocked, ", "))
		node.Metadata.SetFailed(plugins.ReasonMissingDependencies, phrase, "")
		r.log.WithField("mod", node.Metadata.DisplayName).Debugf("Skipped: %s", phrase)
	}
}
