// Package host drives a plugin population through the load pipeline.
//
// # Overview
//
// A Core discovers candidates, validates their manifests, resolves a load
// order, loads and instantiates each code plugin, and registers everything
// that loaded. Once the AllLoaded latch flips it calls every mod's Entry,
// then collects the APIs mods publish and flips AllInitialized.
//
// A failure only affects the plugin it came from. It is recorded on the
// plugin's metadata and in a per-plugin Result, and the pipeline moves on.
// A mod whose Entry or API call fails stays loaded but is marked degraded
// and publishes nothing.
//
// # Usage Example
//
//	core, err := host.New(host.Options{
//		Dirs:     []string{"./mods"},
//		Builtins: host.Builtins{"console": newConsoleMod},
//	}, logger)
//	if err != nil {
//		return err
//	}
//	defer core.Close()
//
//	report, err := core.Run(ctx)
//	for _, entry := range report.Entries {
//		fmt.Printf("%s: %s %s\n", entry.DisplayName, entry.Status, entry.ErrorPhrase)
//	}
//
// # Related Packages
//
//   - pkg/plugins: manifests, metadata and the registry
//   - pkg/assembly: source loading and rewriting
//   - pkg/engine: runs interpreted plugin code
//   - pkg/proxy: binds cross-mod APIs
package host
