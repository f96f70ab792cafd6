package cli

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/moddb"
	"github.com/platinummonkey/modhost/pkg/observability"
)

// session is one configured host with its collaborators.
type session struct {
	core     *host.Core
	store    *moddb.Store
	metrics  *observability.Metrics
	registry *prometheus.Registry
}

// newSession opens the mod database (when configured) and creates the core.
func (a *app) newSession(ctx context.Context, dryRun bool) (*session, error) {
	s := &session{registry: prometheus.NewRegistry()}
	if a.cfg.Observability.MetricsEnabled {
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		s.metrics = observability.NewMetrics(s.registry)
	}

	opts := host.Options{
		Dirs:                 a.cfg.Plugins.Dirs,
		APIVersion:           a.cfg.Plugins.APIVersion,
		HostVersion:          a.cfg.Plugins.HostVersion,
		SuppressUpdateChecks: a.cfg.Plugins.SuppressUpdateChecks,
		ParanoidWarnings:     a.cfg.Plugins.ParanoidWarnings,
		DisableRewrites:      !a.cfg.Plugins.RewriteEnabled,
		DryRun:               dryRun,
		Builtins:             a.builtins,
		Metrics:              s.metrics,
	}

	if path := a.cfg.ModDB.Path; path != "" {
		store, err := moddb.Open(ctx, path, a.logger)
		if err != nil {
			return nil, err
		}
		if err := store.Refresh(ctx); err != nil {
			store.Close()
			return nil, err
		}
		s.store = store
		opts.DataRecords = store
	}

	core, err := host.New(opts, a.logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.core = core
	return s, nil
}

// Close disposes the mods and closes the database.
func (s *session) Close() error {
	var errs []error
	if s.core != nil {
		errs = append(errs, s.core.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
