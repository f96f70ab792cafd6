// Package plugins holds the plugin model shared by every stage of the host.
//
// # Overview
//
// This package defines manifests, the per-plugin Metadata wrapper, manifest
// discovery and validation, and the Registry that gates access to the loaded
// population.
//
// # Lifecycle
//
// Each candidate starts Pending and moves once to Failed or Loaded. The
// Registry moves through Discovering, Loading, AllLoaded, Initializing and
// AllInitialized. Reading the whole population before AllLoaded, or an API
// before AllInitialized, panics with a *PhaseViolation.
//
// # Manifests
//
// A plugin folder holds manifest.json (or manifest.yaml):
//
//	{
//		"UniqueID": "alice.Farming",
//		"Name": "Farming",
//		"Version": "1.4.0",
//		"EntryPoint": "src",
//		"MinimumApiVersion": "1.0.0",
//		"Dependencies": [{"UniqueID": "bob.Core", "MinimumVersion": "2.0.0"}],
//		"UpdateKeys": ["GitHub:alice/farming"]
//	}
//
// Content packs set ContentPackFor instead of EntryPoint.
//
// # Usage Example
//
//	discoverer := plugins.NewDiscoverer(plugins.GetDefaultPluginDirectories(), log)
//	candidates := discoverer.Discover()
//
//	validator := plugins.NewValidator(plugins.ValidatorOptions{}, log)
//	for _, result := range validator.Validate(candidates) {
//		if result.Err != nil {
//			fmt.Printf("%s: %s\n", result.Metadata.DisplayName, result.Err.Phrase)
//		}
//	}
//
// # Related Packages
//
//   - pkg/dependencies: load order
//   - pkg/assembly: code loading and rewriting
//   - pkg/host: the load pipeline
package plugins
