// Package api serves the host's status over HTTP.
//
// Routes:
//
//	GET /healthz                 200 once every mod is initialized, 503 before
//	GET /livez                   always 200
//	GET /metrics                 Prometheus metrics
//	GET /api/v1/plugins          load report (?details=true adds developer details)
//	GET /api/v1/plugins/{id}     one report entry
//	GET /api/v1/order            resolved load order
//	GET /api/v1/graph            dependency graph in Cytoscape.js format
//	                             (?mod=ID keeps only that mod's neighborhood)
//
// The report routes answer 503 until loading has finished.
package api
