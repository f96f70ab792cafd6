package assembly

import (
	"go/ast"
	"go/types"
	"sort"
	"strings"

	"github.com/platinummonkey/modhost/pkg/compatibility"
)

// entryInfo describes what the host can call on a plugin's entry type.
type entryInfo struct {
	EntryType  string
	HasDispose bool

	APIType    string
	APIPointer bool
	APIMembers []string
	// APIUnpublishable holds the declared API() result type when it isn't a
	// named exported type declared by the plugin.
	APIUnpublishable string
}

type declarations struct {
	types   map[string]ast.Expr
	methods map[string][]*ast.FuncDecl
	sdk     map[*ast.FuncDecl]map[string]bool // local names bound to the SDK, per method's file
}

func collectDeclarations(files []*ast.File) *declarations {
	decls := &declarations{
		types:   make(map[string]ast.Expr),
		methods: make(map[string][]*ast.FuncDecl),
		sdk:     make(map[*ast.FuncDecl]map[string]bool),
	}
	for _, f := range files {
		sdkNames := make(map[string]bool)
		for name, path := range importPaths(f) {
			if path == compatibility.SDKPath {
				sdkNames[name] = true
			}
		}

		for _, decl := range f.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					if ts, ok := spec.(*ast.TypeSpec); ok {
						decls.types[ts.Name.Name] = ts.Type
					}
				}
			case *ast.FuncDecl:
				recv := receiverType(d)
				if recv == "" {
					continue
				}
				decls.methods[recv] = append(decls.methods[recv], d)
				decls.sdk[d] = sdkNames
			}
		}
	}
	return decls
}

func receiverType(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.IndexExpr:
		if ident, ok := e.X.(*ast.Ident); ok {
			return ident.Name
		}
	case *ast.IndexListExpr:
		if ident, ok := e.X.(*ast.Ident); ok {
			return ident.Name
		}
	}
	return ""
}

func fieldCount(fields *ast.FieldList) int {
	if fields == nil {
		return 0
	}
	n := 0
	for _, field := range fields.List {
		if len(field.Names) == 0 {
			n++
		} else {
			n += len(field.Names)
		}
	}
	return n
}

func isIdent(expr ast.Expr, name string) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == name
}

// returnsOnlyError reports whether fn takes no arguments and returns error.
func returnsOnlyError(fn *ast.FuncDecl) bool {
	return fieldCount(fn.Type.Params) == 0 &&
		fieldCount(fn.Type.Results) == 1 &&
		isIdent(fn.Type.Results.List[0].Type, "error")
}

// isEntryMethod matches Entry(sdk.Helper) error.
func (d *declarations) isEntryMethod(fn *ast.FuncDecl) bool {
	if fn.Name.Name != "Entry" || fieldCount(fn.Type.Params) != 1 || fieldCount(fn.Type.Results) != 1 {
		return false
	}
	if !isIdent(fn.Type.Results.List[0].Type, "error") {
		return false
	}
	sel, ok := fn.Type.Params.List[0].Type.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Helper" {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && d.sdk[fn][pkg.Name]
}

func (d *declarations) method(typeName, name string) *ast.FuncDecl {
	for _, fn := range d.methods[typeName] {
		if fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

// findEntry locates the single struct type implementing the entry method.
func findEntry(files []*ast.File) (*entryInfo, *LoadError) {
	decls := collectDeclarations(files)

	var candidates []string
	for typeName, methods := range decls.methods {
		if _, isStruct := decls.types[typeName].(*ast.StructType); !isStruct {
			continue
		}
		for _, fn := range methods {
			if decls.isEntryMethod(fn) {
				candidates = append(candidates, typeName)
				break
			}
		}
	}
	sort.Strings(candidates)

	switch {
	case len(candidates) == 0:
		return nil, loadFailed(PhraseNoEntryType, "no struct type declares Entry(sdk.Helper) error")
	case len(candidates) > 1:
		return nil, loadFailed(PhraseMultipleEntries, "found %s", strings.Join(candidates, ", "))
	}

	info := &entryInfo{EntryType: candidates[0]}
	if fn := decls.method(info.EntryType, "Dispose"); fn != nil && returnsOnlyError(fn) {
		info.HasDispose = true
	}
	if fn := decls.method(info.EntryType, "API"); fn != nil &&
		fieldCount(fn.Type.Params) == 0 && fieldCount(fn.Type.Results) == 1 {
		decls.describeAPI(info, fn.Type.Results.List[0].Type)
	}
	return info, nil
}

func (d *declarations) describeAPI(info *entryInfo, result ast.Expr) {
	expr := result
	if star, ok := expr.(*ast.StarExpr); ok {
		info.APIPointer = true
		expr = star.X
	}

	ident, ok := expr.(*ast.Ident)
	if !ok || !ast.IsExported(ident.Name) || d.types[ident.Name] == nil {
		info.APIPointer = false
		info.APIUnpublishable = types.ExprString(result)
		return
	}
	info.APIType = ident.Name

	members := make(map[string]bool)
	for _, fn := range d.methods[ident.Name] {
		if fn.Name.IsExported() {
			members[fn.Name.Name] = true
		}
	}
	if iface, ok := d.types[ident.Name].(*ast.InterfaceType); ok {
		for _, field := range iface.Methods.List {
			for _, name := range field.Names {
				if name.IsExported() {
					members[name.Name] = true
				}
			}
		}
	}
	for name := range members {
		info.APIMembers = append(info.APIMembers, name)
	}
	sort.Strings(info.APIMembers)
}
