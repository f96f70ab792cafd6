package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the host.
type Metrics struct {
	PluginsDiscovered   prometheus.Counter
	PluginLoadResults   *prometheus.CounterVec
	PluginLoadDuration  prometheus.Histogram
	RegistryPhase       prometheus.Gauge
	ProxyCallsTotal     *prometheus.CounterVec
	UpdateChecksTotal   *prometheus.CounterVec
	UpdateCheckDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with registry. A nil
// registry leaves them unregistered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		PluginsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modhost_plugins_discovered_total",
			Help: "Total number of plugin folders discovered",
		}),
		PluginLoadResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_plugin_load_results_total",
				Help: "Plugin load outcomes by status and failure reason",
			},
			[]string{"status", "reason"},
		),
		PluginLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "modhost_plugin_load_duration_seconds",
			Help:    "Time spent loading and instantiating one plugin",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		RegistryPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modhost_registry_phase",
			Help: "Current registry phase (0=Discovering .. 4=AllInitialized)",
		}),
		ProxyCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_proxy_calls_total",
				Help: "Cross-mod API calls by result",
			},
			[]string{"result"},
		),
		UpdateChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_update_checks_total",
				Help: "Update check requests by result",
			},
			[]string{"result"},
		),
		UpdateCheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "modhost_update_check_duration_seconds",
			Help:    "Update check request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.PluginsDiscovered,
			m.PluginLoadResults,
			m.PluginLoadDuration,
			m.RegistryPhase,
			m.ProxyCallsTotal,
			m.UpdateChecksTotal,
			m.UpdateCheckDuration,
		)
	}

	return m
}

// RecordDiscovered adds discovered plugin folders.
func (m *Metrics) RecordDiscovered(n int) {
	m.PluginsDiscovered.Add(float64(n))
}

// RecordLoadResult counts one plugin's final status.
func (m *Metrics) RecordLoadResult(status, reason string) {
	if reason == "" {
		reason = "none"
	}
	m.PluginLoadResults.WithLabelValues(status, reason).Inc()
}

// RecordLoadDuration observes the time spent loading one plugin.
func (m *Metrics) RecordLoadDuration(d time.Duration) {
	m.PluginLoadDuration.Observe(d.Seconds())
}

// SetPhase records the registry phase.
func (m *Metrics) SetPhase(phase int) {
	m.RegistryPhase.Set(float64(phase))
}

// RecordProxyCall counts one cross-mod API call.
func (m *Metrics) RecordProxyCall(result string) {
	m.ProxyCallsTotal.WithLabelValues(result).Inc()
}

// RecordUpdateCheck counts one update check request.
func (m *Metrics) RecordUpdateCheck(result string, d time.Duration) {
	m.UpdateChecksTotal.WithLabelValues(result).Inc()
	m.UpdateCheckDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
