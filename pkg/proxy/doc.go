// Package proxy lets one mod call another mod's API through a shape it
// declares itself, without importing the provider's types.
//
// # Overview
//
// A shape is a struct of func fields. Bind fills each field with an adapter
// that forwards to the target member of the same name (or the name in a
// `modhost:"Name"` tag), converting arguments and results between
// structurally identical types: same-kind basics, pointers, slices, arrays,
// maps, structs matched by field name, and funcs.
//
// Binding never fails because of the target. A member that doesn't exist, or
// a signature that can't be converted, is reported when the field is called:
// as the last result when it is an error, as a panic otherwise.
//
// # Usage Example
//
//	var farming struct {
//		Harvest func(crop string) (int, error)
//	}
//	factory, _ := proxy.NewFactory(proxy.DefaultCacheSize)
//	if err := factory.Bind(api, &farming); err != nil {
//		return err
//	}
//	n, err := farming.Harvest("parsnip")
//
// Plans are cached per (target type, shape type) pair.
package proxy
