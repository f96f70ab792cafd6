package cli

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modhost/pkg/dependencies"
)

type graphOptions struct {
	format        string
	includeFailed bool
	mod           string
}

func newGraphCommand(a *app) *cobra.Command {
	opts := graphOptions{}
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the mod dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.graph(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "output format (dot or json)")
	cmd.Flags().BoolVar(&opts.includeFailed, "failed", true, "include mods that failed to load")
	cmd.Flags().StringVarP(&opts.mod, "mod", "m", "", "only show this mod, what it needs and what needs it")
	return cmd
}

func (a *app) graph(ctx context.Context, opts graphOptions) error {
	if opts.format != "dot" && opts.format != "json" {
		return fmt.Errorf("unknown graph format %q (must be dot or json)", opts.format)
	}

	s, _, err := a.dryRun(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	graph := dependencies.BuildGraph(s.core.Registry().Candidates(), opts.includeFailed)
	if opts.mod != "" {
		if graph = graph.Neighborhood(opts.mod); graph == nil {
			return fmt.Errorf("mod %s is not in the graph", opts.mod)
		}
	}
	if opts.format == "dot" {
		return graph.WriteDOT(a.out)
	}

	data, err := sonic.ConfigStd.MarshalIndent(graph.ToCytoscape(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}
