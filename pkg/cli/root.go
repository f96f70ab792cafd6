package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modhost/pkg/config"
	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/observability"
)

// BuildInfo is set by main from -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	if b.Version == "" || b.Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.Date)
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	dirs       []string
	logLevel   string
	noColor    bool
}

// app is the state built once the flags are parsed.
type app struct {
	build    BuildInfo
	builtins host.Builtins
	cfg      *config.Config
	logger   *logrus.Logger
	out      io.Writer
}

// NewRootCommand creates the modhost command tree. builtins are the native
// mods compiled into this binary; it may be nil.
func NewRootCommand(build BuildInfo, builtins host.Builtins) *cobra.Command {
	flags := &globalFlags{}
	a := &app{build: build, builtins: builtins}

	root := &cobra.Command{
		Use:   "modhost",
		Short: "Load and run Go mods with dependency ordering and isolation",
		Long: heredoc.Doc(`
			modhost discovers mods in the plugin folders, validates their manifests,
			orders them by dependency and loads them one by one. A mod that fails is
			reported and skipped; everything else keeps loading.

			Configuration comes from MODHOST_* environment variables, optionally
			overlaid by a YAML file (--config or MODHOST_CONFIG), then by flags.
		`),
		Example: heredoc.Doc(`
			modhost run --plugins ./Mods
			modhost check --plugins ./Mods --details
			modhost graph --format dot | dot -Tsvg > mods.svg
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, flags)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	root.PersistentFlags().StringSliceVarP(&flags.dirs, "plugins", "p", nil, "plugin folders to search (repeatable)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCommand(a),
		newCheckCommand(a),
		newGraphCommand(a),
		newInitCommand(a),
		newModDBCommand(a),
		newVersionCommand(a),
	)
	return root
}

// setup loads the configuration and the logger.
func (a *app) setup(cmd *cobra.Command, flags *globalFlags) error {
	a.out = cmd.OutOrStdout()
	if flags.noColor {
		color.NoColor = true
	}

	cfg := config.FromEnv()
	path := flags.configFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}
	if len(flags.dirs) > 0 {
		cfg.Plugins.Dirs = nil
		for _, dir := range flags.dirs {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("invalid plugin folder %s: %w", dir, err)
			}
			cfg.Plugins.Dirs = append(cfg.Plugins.Dirs, abs)
		}
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}
	if os.Getenv("MODHOST_HOST_VERSION") == "" && a.build.Version != "" {
		cfg.Plugins.HostVersion = a.build.Version
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, observability.LogFormat(cfg.Observability.LogFormat), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the modhost version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "modhost %s\n", a.build)
			fmt.Fprintf(a.out, "mod API %s\n", a.cfg.Plugins.APIVersion)
			return nil
		},
	}
}
