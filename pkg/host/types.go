package host

import (
	"github.com/platinummonkey/modhost/pkg/assembly"
	"github.com/platinummonkey/modhost/pkg/observability"
	"github.com/platinummonkey/modhost/pkg/plugins"
	"github.com/platinummonkey/modhost/pkg/proxy"
	"github.com/platinummonkey/modhost/pkg/sdk"
)

// User-facing phrases for failures after a mod was loaded.
const (
	PhraseEntryCrashed    = "Mod crashed on entry and might not work correctly."
	PhraseAPIFailed       = "Failed loading the mod-provided API."
	PhraseBuiltinCrashed  = "its built-in entry couldn't be created."
	phraseDependencyLost  = "it needs the '%s' mod, which couldn't be loaded."
	warnNonPublicAPI      = "%s provides an API instance with a non-public type. This isn't currently supported, so the API won't be available to other mods."
	phraseInternalFailure = "its code couldn't be loaded."
)

// CodeLoader reads and rewrites a code plugin's source.
type CodeLoader interface {
	Load(meta *plugins.Metadata, assumeCompatible bool) (*assembly.LoadedCode, error)
}

// Instantiator creates the entry instance for loaded code.
type Instantiator interface {
	Instantiate(meta *plugins.Metadata, code *assembly.LoadedCode) (sdk.Mod, error)
}

// DataRecordSource looks up the host's compatibility record for a mod id.
// It returns nil when there is none.
type DataRecordSource interface {
	Lookup(id string) *plugins.DataRecord
}

// BuiltinFactory creates an in-tree mod.
type BuiltinFactory func() sdk.Mod

// Builtins maps builtin:<name> entry points to their factories.
type Builtins map[string]BuiltinFactory

// Has reports whether name is a known builtin.
func (b Builtins) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Options configures a Core. The zero value loads nothing; set Dirs.
type Options struct {
	Dirs                 []string
	APIVersion           string
	HostVersion          string
	SuppressUpdateChecks []string
	ParanoidWarnings     bool
	DisableRewrites      bool

	// DryRun validates, resolves and loads code without running any of it.
	DryRun bool

	Builtins    Builtins
	DataRecords DataRecordSource

	// Loader and Instantiator default to the source loader and the interpreter.
	Loader       CodeLoader
	Instantiator Instantiator

	Proxy   *proxy.Factory
	Metrics *observability.Metrics
}

// Stage names a pipeline step.
type Stage string

const (
	StageDiscover    Stage = "discover"
	StageValidate    Stage = "validate"
	StageResolve     Stage = "resolve"
	StageLoad        Stage = "load"
	StageInstantiate Stage = "instantiate"
	StageRegister    Stage = "register"
	StageEntry       Stage = "entry"
	StageAPI         Stage = "api"
	StageReady       Stage = "ready"
)

// Result is the outcome of the last stage a plugin reached.
type Result struct {
	Metadata *plugins.Metadata
	Stage    Stage
	Err      error
}

// OK reports whether the plugin got through every stage.
func (r Result) OK() bool {
	return r.Err == nil
}
