package cli

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modhost/pkg/host"
)

type checkOptions struct {
	details bool
	json    bool
	strict  bool
}

// errFailedMods makes check --strict exit non-zero.
type errFailedMods struct {
	count int
}

func (e *errFailedMods) Error() string {
	return fmt.Sprintf("%d mod(s) failed to load", e.count)
}

func newCheckCommand(a *app) *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate, order and load mods without running them",
		Long: heredoc.Doc(`
			Runs the load pipeline without calling any mod's entry point. Manifests
			are validated, dependencies resolved and code loaded and checked, so
			the report shows every problem a real run would hit before the mods
			start.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.details, "details", false, "show developer details for failed mods")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error when any mod fails")
	return cmd
}

// dryRun loads every mod without running it and returns the report.
func (a *app) dryRun(ctx context.Context) (*session, *host.Report, error) {
	s, err := a.newSession(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.core.Run(ctx)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to check mods: %w", err)
	}
	return s, report, nil
}

func (a *app) check(ctx context.Context, opts checkOptions) error {
	s, report, err := a.dryRun(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !opts.details {
		report = report.WithoutDetails()
	}

	if opts.json {
		data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Fprintln(a.out, string(data))
	} else {
		renderReport(a.out, report, opts.details)
		fmt.Fprintln(a.out)
		renderOrder(a.out, report)
	}

	if failed := report.Summarize().Failed; opts.strict && failed > 0 {
		return &errFailedMods{count: failed}
	}
	return nil
}
