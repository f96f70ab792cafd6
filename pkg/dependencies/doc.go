// Package dependencies orders plugins so every plugin loads after the
// plugins it depends on.
//
// # Overview
//
// Resolve works on validated candidates in three steps:
//
//  1. Candidates whose required dependencies are absent, failed or too old
//     are marked failed. This repeats until nothing changes, so a failure
//     cascades to dependents one level per pass.
//  2. A DependencyGraph is built over the remaining candidates, with edges
//     for required dependencies and for optional dependencies that are
//     present.
//  3. Kahn's algorithm extracts ready nodes in display-name order. Nodes
//     left over when nothing is ready are in, or behind, a cycle; they are
//     marked failed with the cycle path in the phrase.
//
// Every failure uses plugins.ReasonMissingDependencies. The phrase tells a
// directly missing dependency, a failed dependency and a cycle apart.
//
// # Usage Example
//
//	resolver := dependencies.NewResolver(log)
//	order := resolver.Resolve(candidates)
//
//	graph := dependencies.BuildGraph(candidates, true)
//	graph.WriteDOT(os.Stdout)
package dependencies
