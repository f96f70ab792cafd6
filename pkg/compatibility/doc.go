// Package compatibility holds the table of API changes the host knows how to
// handle in plugin code.
//
// # Overview
//
// Each Rule matches an exported identifier (import path plus name). A
// relocated identifier has a safe replacement and is rewritten at load time;
// a removed or changed identifier has none, so code using it is rejected as
// incompatible unless the host was told to assume it still works.
//
// # Usage Example
//
//	rules := compatibility.DefaultRules()
//	if rule, ok := rules.Lookup(compatibility.Ref{Package: "io/ioutil", Name: "ReadFile"}); ok {
//		fmt.Println(compatibility.ForRule(rule, "main.go:12:3"))
//	}
//
// # Related Packages
//
//   - pkg/assembly: applies the rules to parsed plugin source
package compatibility
