package cli

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/modhost/pkg/api"
	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/observability"
	"github.com/platinummonkey/modhost/pkg/plugins"
	"github.com/platinummonkey/modhost/pkg/updates"
	"github.com/platinummonkey/modhost/pkg/watch"
)

type runOptions struct {
	details bool
	once    bool
}

func newRunCommand(a *app) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load every mod and keep the host running",
		Long: heredoc.Doc(`
			Loads every mod, prints the load report and keeps running until
			interrupted. While running, the status server answers on the
			configured address, update checks run in the background and, with
			watching enabled, edits to mod folders are reported.

			Mods are disposed in reverse load order on shutdown.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.details, "details", false, "show developer details for failed mods")
	cmd.Flags().BoolVar(&opts.once, "once", false, "exit after loading instead of waiting for a signal")
	return cmd
}

func (a *app) run(ctx context.Context, opts runOptions) error {
	shutdown := observability.NewShutdownManager(a.logger, a.cfg.Server.ShutdownTimeout)
	defer shutdown.Shutdown(context.Background()) //nolint:errcheck

	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        a.cfg.Observability.OTelEnabled,
		Endpoint:       a.cfg.Observability.OTelEndpoint,
		ServiceName:    a.cfg.Observability.OTelServiceName,
		ServiceVersion: a.cfg.Plugins.HostVersion,
		Insecure:       a.cfg.Observability.OTelInsecure,
	}, a.logger)
	if err != nil {
		return err
	}
	if tp != nil {
		shutdown.Register("tracing", func(ctx context.Context) error {
			return observability.ShutdownTracing(ctx, tp, a.logger)
		})
	}

	s, err := a.newSession(ctx, false)
	if err != nil {
		return err
	}
	shutdown.Register("mods", func(context.Context) error { return s.Close() })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var checker *updates.Checker
	var lookup host.UpdateLookup
	if a.cfg.Updates.Enabled {
		checker = updates.NewChecker(updates.Options{
			ServerURL: a.cfg.Updates.ServerURL,
			Timeout:   a.cfg.Updates.Timeout,
			CacheTTL:  a.cfg.Updates.CacheTTL,
			BatchSize: a.cfg.Updates.BatchSize,
			Suppress:  a.cfg.Plugins.SuppressUpdateChecks,
			Metrics:   s.metrics,
		}, a.logger)
		lookup = checker.Lookup
	}

	if a.cfg.Server.Enabled && !opts.once {
		server := api.NewServer(s.core, api.Options{
			Addr:         a.cfg.Server.Addr,
			ReadTimeout:  a.cfg.Server.ReadTimeout,
			WriteTimeout: a.cfg.Server.WriteTimeout,
			Version:      a.cfg.Plugins.HostVersion,
			Gatherer:     s.registry,
			Updates:      lookup,
		}, a.logger)
		g.Go(server.ListenAndServe)
		shutdown.Register("status server", server.Shutdown)
	}

	report, err := s.core.Run(gctx)
	if err != nil {
		return fmt.Errorf("failed to load mods: %w", err)
	}
	renderReport(a.out, report, opts.details)

	if opts.once {
		cancel()
		return g.Wait()
	}

	if checker != nil {
		loaded := func() []*plugins.Metadata { return s.core.Registry().GetAll(true) }
		checker.CheckInBackground(gctx, loaded())
		if _, err := checker.Schedule(gctx, a.cfg.Updates.Schedule, loaded); err != nil {
			return err
		}
	}

	if a.cfg.Plugins.Watch {
		watcher, err := watch.New(a.cfg.Plugins.Dirs, watch.Options{}, a.logger)
		if err != nil {
			return err
		}
		shutdown.Register("watcher", func(context.Context) error { return watcher.Close() })
		g.Go(func() error { return watcher.Run(gctx) })
	}

	a.logger.Infof("Host ready with %d mod(s). Press Ctrl+C to stop.", len(s.core.Registry().GetAll(true)))
	g.Go(func() error {
		shutdown.WaitForSignal(gctx)
		cancel()
		return shutdown.Shutdown(context.Background())
	})
	return g.Wait()
}
