// Package engine runs plugin code loaded by pkg/assembly inside the yaegi Go
// interpreter.
//
// Each plugin gets its own interpreter with the standard library and the
// plugin SDK (pkg/sdk) available for import. The entry type is created once
// and wrapped in an Instance, which the host drives like any native sdk.Mod.
//
// An API returned by interpreted code is exposed as a *RemoteAPI whose
// methods are looked up by name, so other mods reach it through pkg/proxy.
package engine
