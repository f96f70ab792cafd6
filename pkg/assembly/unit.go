package assembly

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
)

// Merge joins the rewritten files of one package into a single source unit,
// so declarations may refer to each other across files in any order. Each
// file's declarations keep their original file name and line through
// //line directives.
func Merge(files []SourceFile) ([]byte, error) {
	fset := token.NewFileSet()
	imports := make(map[string]string) // local name -> path
	var specs []string
	var body bytes.Buffer

	for _, file := range files {
		f, err := parser.ParseFile(fset, file.Name, file.Source, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.Name, err)
		}

		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: bad import %s", file.Name, imp.Path.Value)
			}
			name := ""
			if imp.Name != nil {
				name = imp.Name.Name
			}
			key := name
			if key == "" {
				key = path
			}
			if name == "_" || name == "." {
				key = name + path
			}
			if existing, ok := imports[key]; ok {
				if existing != path {
					return nil, fmt.Errorf("%s: import name %s is used for both %s and %s", file.Name, name, existing, path)
				}
				continue
			}
			imports[key] = path
			if name != "" {
				specs = append(specs, name+" "+strconv.Quote(path))
			} else {
				specs = append(specs, strconv.Quote(path))
			}
		}

		for _, decl := range f.Decls {
			if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.IMPORT {
				continue
			}
			fmt.Fprintf(&body, "\n//line %s:%d\n", file.Name, fset.Position(decl.Pos()).Line)
			if err := format.Node(&body, fset, decl); err != nil {
				return nil, fmt.Errorf("%s: %w", file.Name, err)
			}
			body.WriteByte('\n')
		}
	}

	sort.Strings(specs)
	var unit bytes.Buffer
	unit.WriteString("package main\n")
	if len(specs) > 0 {
		unit.WriteString("\nimport (\n")
		for _, spec := range specs {
			unit.WriteString("\t" + spec + "\n")
		}
		unit.WriteString(")\n")
	}
	unit.Write(body.Bytes())
	return unit.Bytes(), nil
}

// Source returns the code as one unit for the engine.
func (c *LoadedCode) Source() ([]byte, error) {
	if len(c.Unit) > 0 {
		return c.Unit, nil
	}
	return Merge(c.Files)
}
