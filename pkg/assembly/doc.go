// Package assembly loads plugin source code for the engine.
//
// # Overview
//
// A code plugin ships Go source. The loader picks the files that build for
// the host platform, parses them, rewrites references to APIs that moved
// (see pkg/compatibility), rejects references with no safe rewrite, and finds
// the single entry type: a struct with an Entry(sdk.Helper) error method.
//
// All checks finish before the code is handed to pkg/engine, so nothing a
// plugin wrote runs until it has been fully validated.
//
// # Usage Example
//
//	loader := assembly.NewLoader(assembly.Options{Available: engine.HasPackage}, log)
//	code, err := loader.Load(meta, false)
//	if err != nil {
//		var loadErr *assembly.LoadError
//		if errors.As(err, &loadErr) {
//			meta.Fail(loadErr.Failure())
//		}
//	}
package assembly
