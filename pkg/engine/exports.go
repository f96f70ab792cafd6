package engine

import (
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/platinummonkey/modhost/pkg/compatibility"
	"github.com/platinummonkey/modhost/pkg/sdk"
)

// Exports is the SDK as seen by interpreted plugins. Yaegi expects keys as
// "importPath/pkgName".
var Exports = interp.Exports{
	compatibility.SDKPath + "/sdk": {
		"APIProvider":       reflect.ValueOf((*sdk.APIProvider)(nil)),
		"ContentPack":       reflect.ValueOf((*sdk.ContentPack)(nil)),
		"ContentPackHelper": reflect.ValueOf((*sdk.ContentPackHelper)(nil)),
		"DataHelper":        reflect.ValueOf((*sdk.DataHelper)(nil)),
		"Disposer":          reflect.ValueOf((*sdk.Disposer)(nil)),
		"Helper":            reflect.ValueOf((*sdk.Helper)(nil)),
		"Mod":               reflect.ValueOf((*sdk.Mod)(nil)),
		"ModInfo":           reflect.ValueOf((*sdk.ModInfo)(nil)),
		"ModRegistry":       reflect.ValueOf((*sdk.ModRegistry)(nil)),
		"Monitor":           reflect.ValueOf((*sdk.Monitor)(nil)),

		"ErrAPINotReady":  reflect.ValueOf(&sdk.ErrAPINotReady).Elem(),
		"ErrModNotLoaded": reflect.ValueOf(&sdk.ErrModNotLoaded).Elem(),
		"ErrNoAPI":        reflect.ValueOf(&sdk.ErrNoAPI).Elem(),
		"ErrNotReady":     reflect.ValueOf(&sdk.ErrNotReady).Elem(),
	},
}

var (
	packagesOnce sync.Once
	packages     map[string]bool
)

// HasPackage reports whether interpreted code can import path.
func HasPackage(path string) bool {
	packagesOnce.Do(func() {
		packages = make(map[string]bool, len(stdlib.Symbols)+len(Exports))
		for _, symbols := range []interp.Exports{stdlib.Symbols, Exports} {
			for key := range symbols {
				if i := strings.LastIndex(key, "/"); i > 0 {
					packages[key[:i]] = true
				}
			}
		}
	})
	return packages[path]
}
