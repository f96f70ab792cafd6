// Package sdk is the surface plugins compile against.
//
// A code plugin declares exactly one entry type implementing Mod. The host
// creates one instance, hands it a Helper scoped to that plugin, and after
// every plugin has run Entry it collects optional APIs (APIProvider) for
// other plugins to consume through ModRegistry.BindAPI.
//
//	type Entry struct{ helper sdk.Helper }
//
//	func (e *Entry) Entry(h sdk.Helper) error {
//		e.helper = h
//		h.Monitor().Info("ready")
//		return nil
//	}
//
//	func (e *Entry) API() *PublicAPI { return &PublicAPI{} }
package sdk
