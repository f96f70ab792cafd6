package assembly

import (
	"bytes"
	"errors"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modhost/pkg/compatibility"
	"github.com/platinummonkey/modhost/pkg/plugins"
)

// sensitiveImports maps imports to the paranoid warning they raise.
var sensitiveImports = map[string]plugins.Warning{
	"os/exec":       plugins.WarningAccessesShell,
	"os":            plugins.WarningAccessesFilesystem,
	"io/ioutil":     plugins.WarningAccessesFilesystem,
	"path/filepath": plugins.WarningAccessesFilesystem,
	"unsafe":        plugins.WarningUsesUnsafe,
	"reflect":       plugins.WarningUsesDynamic,
}

// SourceFile is one rewritten file ready for the engine.
type SourceFile struct {
	Name   string
	Source []byte
}

// LoadedCode is the validated, rewritten code of one plugin.
type LoadedCode struct {
	Files []SourceFile
	// Unit is Files merged into one package source.
	Unit       []byte
	EntryType  string
	HasDispose bool

	// APIType is empty when the entry type has no API() method or its result
	// can't be published.
	APIType          string
	APIPointer       bool
	APIMembers       []string
	APIUnpublishable string

	Rewrites int
	Findings []compatibility.Finding
	Warnings []plugins.Warning
}

// Options configures a Loader.
type Options struct {
	Rules    *compatibility.RuleSet
	Platform Platform
	// Available reports whether the engine can resolve an import path.
	Available func(path string) bool
	// Paranoid enables warnings for sensitive imports.
	Paranoid bool
}

// Loader reads plugin source, applies compatibility rewrites and finds the
// entry type. No plugin code runs here.
type Loader struct {
	opts   Options
	logger *logrus.Logger
}

// NewLoader creates a loader. Zero options use the default rules and the
// host platform.
func NewLoader(opts Options, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Rules == nil {
		opts.Rules = compatibility.DefaultRules()
	}
	if opts.Platform == (Platform{}) {
		opts.Platform = HostPlatform()
	}
	return &Loader{opts: opts, logger: logger}
}

// Load loads the code named by the plugin's entry point.
func (l *Loader) Load(meta *plugins.Metadata, assumeCompatible bool) (*LoadedCode, error) {
	log := l.logger.WithField("mod", meta.DisplayName)

	paths, lerr := entryFiles(meta)
	if lerr != nil {
		return nil, lerr
	}

	code, err := l.LoadFiles(paths, assumeCompatible)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Reason == plugins.ReasonIncompatible {
			loadErr.Phrase = plugins.IncompatiblePhrase(meta.DataRecord)
		}
		return nil, err
	}

	if code.Rewrites > 0 {
		log.Debugf("Rewrote %d outdated API references.", code.Rewrites)
	}
	for _, finding := range code.Findings {
		if !finding.Rewritten {
			log.Warnf("Broken code loaded: %s", finding)
		}
	}
	return code, nil
}

func entryFiles(meta *plugins.Metadata) ([]string, *LoadError) {
	if meta.Manifest == nil || meta.Manifest.EntryPoint == "" {
		return nil, loadFailed(PhraseBadEntryPoint, "manifest has no EntryPoint")
	}
	entry := meta.Manifest.EntryPoint
	if strings.HasPrefix(entry, plugins.BuiltinPrefix) {
		return nil, loadFailed(PhraseBadEntryPoint, "%s is not loaded from source", entry)
	}

	path := filepath.Join(meta.Dir, filepath.FromSlash(entry))
	info, err := os.Stat(path)
	if err != nil {
		return nil, loadFailed(PhraseBadEntryPoint, err.Error())
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	paths, err := sourceFiles(path)
	if err != nil {
		return nil, loadFailed(PhraseLoadFailed, err.Error())
	}
	if len(paths) == 0 {
		return nil, loadFailed(PhraseBadEntryPoint, "no Go files in %s", entry)
	}
	return paths, nil
}

// LoadFiles loads the given source files as one plugin.
func (l *Loader) LoadFiles(paths []string, assumeCompatible bool) (*LoadedCode, error) {
	selected, lerr := selectFiles(paths, l.opts.Platform)
	if lerr != nil {
		return nil, lerr
	}
	sort.Strings(selected)

	fset := token.NewFileSet()
	files, lerr := parseFiles(fset, selected)
	if lerr != nil {
		return nil, lerr
	}

	code := &LoadedCode{}
	warnings := make(map[plugins.Warning]bool)

	// Every reference is checked before any file is modified.
	refs := findReferences(fset, files, l.opts.Rules)
	var broken []string
	for _, ref := range refs {
		finding := compatibility.ForRule(ref.rule, ref.location)
		code.Findings = append(code.Findings, finding)
		if !finding.Rewritten {
			broken = append(broken, finding.String())
		}
	}
	if len(broken) > 0 {
		if !assumeCompatible {
			return nil, &LoadError{
				Reason: plugins.ReasonIncompatible,
				Phrase: plugins.IncompatiblePhrase(nil),
				Detail: strings.Join(broken, "; "),
			}
		}
		warnings[plugins.WarningBrokenCodeLoaded] = true
	}

	for _, ref := range refs {
		if ref.rule.CanRewrite() {
			rewrite(fset, ref)
			code.Rewrites++
		}
	}
	if code.Rewrites > 0 {
		warnings[plugins.WarningRewritten] = true
	}
	for _, f := range files {
		dropUnusedImports(fset, f, l.opts.Rules)
	}

	if lerr := l.checkImports(files, assumeCompatible); lerr != nil {
		return nil, lerr
	}
	if l.opts.Paranoid {
		for _, f := range files {
			for _, imp := range f.Imports {
				if path, err := strconv.Unquote(imp.Path.Value); err == nil {
					if w, ok := sensitiveImports[path]; ok {
						warnings[w] = true
					}
				}
			}
		}
	}

	entry, lerr := findEntry(files)
	if lerr != nil {
		return nil, lerr
	}
	code.EntryType = entry.EntryType
	code.HasDispose = entry.HasDispose
	code.APIType = entry.APIType
	code.APIPointer = entry.APIPointer
	code.APIMembers = entry.APIMembers
	code.APIUnpublishable = entry.APIUnpublishable

	for i, f := range files {
		f.Name.Name = "main"
		var buf bytes.Buffer
		if err := format.Node(&buf, fset, f); err != nil {
			return nil, loadFailed(PhraseLoadFailed, "printing %s: %v", filepath.Base(selected[i]), err)
		}
		code.Files = append(code.Files, SourceFile{Name: filepath.Base(selected[i]), Source: buf.Bytes()})
	}
	unit, err := Merge(code.Files)
	if err != nil {
		return nil, loadFailed(PhraseLoadFailed, err.Error())
	}
	code.Unit = unit

	for w := range warnings {
		code.Warnings = append(code.Warnings, w)
	}
	sort.Slice(code.Warnings, func(i, j int) bool { return code.Warnings[i] < code.Warnings[j] })
	return code, nil
}

func parseFiles(fset *token.FileSet, paths []string) ([]*ast.File, *LoadError) {
	files := make([]*ast.File, 0, len(paths))
	pkgName := ""
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, loadFailed(PhraseLoadFailed, err.Error())
		}
		f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
		if err != nil {
			return nil, loadFailed(PhraseLoadFailed, err.Error())
		}
		if pkgName == "" {
			pkgName = f.Name.Name
		} else if f.Name.Name != pkgName {
			return nil, loadFailed(PhraseLoadFailed, "found packages %s and %s in %s", pkgName, f.Name.Name, filepath.Dir(path))
		}
		files = append(files, f)
	}
	return files, nil
}

func (l *Loader) checkImports(files []*ast.File, assumeCompatible bool) *LoadError {
	if l.opts.Available == nil {
		return nil
	}
	missing := make(map[string]bool)
	for _, f := range files {
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil || l.opts.Available(path) {
				continue
			}
			// broken references stay in place when the caller allowed them
			if assumeCompatible && l.opts.Rules.CoversPackage(path) {
				continue
			}
			missing[path] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}
	paths := make([]string, 0, len(missing))
	for path := range missing {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return loadFailed(PhraseUnresolvedImport, "unresolvable imports: %s", strings.Join(paths, ", "))
}
