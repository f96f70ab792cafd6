package compatibility

import (
	"fmt"
	"sort"
)

// LegacySDKPath is the import path of the SDK before the 1.0 API.
const LegacySDKPath = "github.com/platinummonkey/modhost/sdk"

// SDKPath is the import path plugins compile against.
const SDKPath = "github.com/platinummonkey/modhost/pkg/sdk"

// Ref names an exported package-level identifier.
type Ref struct {
	Package string
	Name    string
}

func (r Ref) String() string {
	return r.Package + "." + r.Name
}

// RuleKind describes how an API changed.
type RuleKind int

const (
	// KindRelocated means the identifier moved and can be rewritten safely.
	KindRelocated RuleKind = iota
	// KindRemoved means the identifier no longer exists.
	KindRemoved
	// KindChanged means the identifier exists with different behavior or signature.
	KindChanged
)

func (k RuleKind) String() string {
	return []string{"relocated", "removed", "changed"}[k]
}

// Rule is one entry in the compatibility table.
type Rule struct {
	From       Ref
	Kind       RuleKind
	To         Ref // only for KindRelocated
	Suggestion string
}

// CanRewrite reports whether the rule has a safe replacement.
func (r Rule) CanRewrite() bool {
	return r.Kind == KindRelocated && r.To.Package != "" && r.To.Name != ""
}

// RuleSet indexes rules by the identifier they match.
type RuleSet struct {
	rules    map[Ref]Rule
	packages map[string]bool
}

// NewRuleSet creates a rule set. Later rules replace earlier ones for the same Ref.
func NewRuleSet(rules ...Rule) *RuleSet {
	rs := &RuleSet{
		rules:    make(map[Ref]Rule, len(rules)),
		packages: make(map[string]bool),
	}
	for _, rule := range rules {
		rs.Add(rule)
	}
	return rs
}

// Add adds or replaces a rule.
func (rs *RuleSet) Add(rule Rule) {
	rs.rules[rule.From] = rule
	rs.packages[rule.From.Package] = true
}

// Lookup returns the rule matching ref.
func (rs *RuleSet) Lookup(ref Ref) (Rule, bool) {
	rule, ok := rs.rules[ref]
	return rule, ok
}

// CoversPackage reports whether any rule targets the package.
func (rs *RuleSet) CoversPackage(path string) bool {
	return rs.packages[path]
}

// Rules returns every rule, sorted by Ref.
func (rs *RuleSet) Rules() []Rule {
	result := make([]Rule, 0, len(rs.rules))
	for _, rule := range rs.rules {
		result = append(result, rule)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].From.String() < result[j].From.String() })
	return result
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

func relocated(fromPkg, fromName, toPkg, toName string) Rule {
	return Rule{
		From:       Ref{Package: fromPkg, Name: fromName},
		Kind:       KindRelocated,
		To:         Ref{Package: toPkg, Name: toName},
		Suggestion: fmt.Sprintf("use %s.%s", toPkg, toName),
	}
}

// DefaultRules returns the table of known API changes.
func DefaultRules() *RuleSet {
	return NewRuleSet(
		relocated("io/ioutil", "ReadFile", "os", "ReadFile"),
		relocated("io/ioutil", "WriteFile", "os", "WriteFile"),
		relocated("io/ioutil", "ReadAll", "io", "ReadAll"),
		relocated("io/ioutil", "TempDir", "os", "MkdirTemp"),
		relocated("io/ioutil", "TempFile", "os", "CreateTemp"),
		relocated("io/ioutil", "Discard", "io", "Discard"),
		relocated("io/ioutil", "NopCloser", "io", "NopCloser"),
		Rule{
			From:       Ref{Package: "io/ioutil", Name: "ReadDir"},
			Kind:       KindChanged,
			Suggestion: "os.ReadDir returns []fs.DirEntry instead of []fs.FileInfo",
		},

		relocated(LegacySDKPath, "ModHelper", SDKPath, "Helper"),
		relocated(LegacySDKPath, "Mod", SDKPath, "Mod"),
		relocated(LegacySDKPath, "Monitor", SDKPath, "Monitor"),
		relocated(LegacySDKPath, "ContentPack", SDKPath, "ContentPack"),
		relocated(LegacySDKPath, "ModInfo", SDKPath, "ModInfo"),
		Rule{
			From:       Ref{Package: LegacySDKPath, Name: "GameLoop"},
			Kind:       KindRemoved,
			Suggestion: "the host no longer exposes its update loop to mods",
		},
		Rule{
			From:       Ref{Package: LegacySDKPath, Name: "OnTick"},
			Kind:       KindRemoved,
			Suggestion: "the host no longer exposes its update loop to mods",
		},
	)
}
