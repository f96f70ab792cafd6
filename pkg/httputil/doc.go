// Package httputil holds the JSON response helpers, request parsing and
// middleware shared by the status server.
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
//
// Errors are written as {"error": "..."}:
//
//	httputil.WriteNotFoundError(w, "mod not found")
package httputil
