package assembly

import (
	"fmt"
	"go/ast"
	"go/token"
	pathpkg "path"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/platinummonkey/modhost/pkg/compatibility"
)

// reference is a selector in plugin code that matched a compatibility rule.
type reference struct {
	file     *ast.File
	sel      *ast.SelectorExpr
	rule     compatibility.Rule
	location string
}

// importPaths returns the file's imports keyed by the name they are bound to.
// Blank and dot imports are skipped since they can't be selected through.
func importPaths(f *ast.File) map[string]string {
	names := make(map[string]string)
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := pathpkg.Base(path)
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				continue
			}
			name = imp.Name.Name
		}
		names[name] = path
	}
	return names
}

// findReferences scans every file before anything is changed.
func findReferences(fset *token.FileSet, files []*ast.File, rules *compatibility.RuleSet) []reference {
	var refs []reference
	for _, f := range files {
		names := importPaths(f)
		ast.Inspect(f, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			ident, ok := sel.X.(*ast.Ident)
			// Obj is set when the name resolves to a local declaration
			if !ok || ident.Obj != nil {
				return true
			}
			path, ok := names[ident.Name]
			if !ok {
				return true
			}
			rule, ok := rules.Lookup(compatibility.Ref{Package: path, Name: sel.Sel.Name})
			if !ok {
				return true
			}
			pos := fset.Position(sel.Pos())
			refs = append(refs, reference{
				file:     f,
				sel:      sel,
				rule:     rule,
				location: fmt.Sprintf("%s:%d:%d", filepath.Base(pos.Filename), pos.Line, pos.Column),
			})
			return true
		})
	}
	return refs
}

// rewrite points ref at the rule's replacement, importing it when needed.
func rewrite(fset *token.FileSet, ref reference) {
	target := ref.rule.To.Package
	names := importPaths(ref.file)

	local := ""
	for name, path := range names {
		if path == target {
			local = name
			break
		}
	}
	if local == "" {
		local = pathpkg.Base(target)
		if other, taken := names[local]; taken && other != target {
			local += "compat"
			astutil.AddNamedImport(fset, ref.file, local, target)
		} else {
			astutil.AddImport(fset, ref.file, target)
		}
	}

	ref.sel.X.(*ast.Ident).Name = local
	ref.sel.Sel.Name = ref.rule.To.Name
}

// dropUnusedImports removes imports of rule-covered packages that no longer
// have any references after rewriting.
func dropUnusedImports(fset *token.FileSet, f *ast.File, rules *compatibility.RuleSet) {
	var paths []string
	for _, path := range importPaths(f) {
		if rules.CoversPackage(path) && !astutil.UsesImport(f, path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		astutil.DeleteImport(fset, f, path)
	}
}
