package api

import (
	"net/http"

	"github.com/platinummonkey/modhost/pkg/dependencies"
	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/httputil"
)

// PluginsResponse is the body of GET /api/v1/plugins.
type PluginsResponse struct {
	*host.Report
	Summary host.Summary `json:"summary"`
}

// OrderResponse is the body of GET /api/v1/order.
type OrderResponse struct {
	Order []string `json:"order"`
}

// ready writes a 503 and returns false until every mod is initialized.
// Metadata is still being written before that.
func (s *Server) ready(w http.ResponseWriter) bool {
	if !s.core.Registry().AreAllInitialized() {
		httputil.WriteServiceUnavailable(w, errLoading.Error())
		return false
	}
	return true
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) (*host.Report, bool) {
	details, ok := httputil.ParseQueryBoolOrError(w, r, "details", false)
	if !ok {
		return nil, false
	}
	report := host.BuildReport(s.core, s.opts.Updates)
	if !details {
		report = report.WithoutDetails()
	}
	return report, true
}

func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, PluginsResponse{Report: report, Summary: report.Summarize()})
}

func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	entry, found := report.Find(id)
	if !found {
		httputil.WriteNotFoundError(w, "mod not found: "+id)
		return
	}
	httputil.WriteSuccess(w, entry)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	order := make([]string, 0, len(s.core.Order()))
	for _, meta := range s.core.Order() {
		order = append(order, meta.ID())
	}
	httputil.WriteSuccess(w, OrderResponse{Order: order})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	includeFailed, ok := httputil.ParseQueryBoolOrError(w, r, "failed", true)
	if !ok {
		return
	}
	graph := dependencies.BuildGraph(s.core.Registry().Candidates(), includeFailed)
	if id := r.URL.Query().Get("mod"); id != "" {
		if graph = graph.Neighborhood(id); graph == nil {
			httputil.WriteNotFoundError(w, "mod not in graph: "+id)
			return
		}
	}
	httputil.WriteSuccess(w, graph.ToCytoscape())
}
