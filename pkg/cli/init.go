package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

const modTemplate = `package mod

import "github.com/platinummonkey/modhost/pkg/sdk"

// Mod is the entry type.
type Mod struct{}

// Entry is called once every mod is loaded.
func (m *Mod) Entry(helper sdk.Helper) error {
	helper.Monitor().Info("Hello from " + helper.ModID())
	return nil
}
`

type initOptions struct {
	id             string
	name           string
	version        string
	contentPackFor string
	format         string
	force          bool
}

func newInitCommand(a *app) *cobra.Command {
	opts := initOptions{}
	cmd := &cobra.Command{
		Use:   "init DIR",
		Short: "Create a new mod folder",
		Long: heredoc.Doc(`
			Create a mod folder with a manifest and, unless --content-pack-for is
			set, a starter entry type in src/mod.go.
		`),
		Example: heredoc.Doc(`
			modhost init Mods/Farming --id alice.Farming
			modhost init Mods/FarmingPack --id alice.FarmingPack --content-pack-for alice.Farming
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.initMod(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.id, "id", "", "unique ID of the mod (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name (default: last part of the ID)")
	cmd.Flags().StringVar(&opts.version, "version", "1.0.0", "initial version")
	cmd.Flags().StringVar(&opts.contentPackFor, "content-pack-for", "", "create a content pack for this mod ID")
	cmd.Flags().StringVar(&opts.format, "format", "json", "manifest format (json or yaml)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing manifest")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) initMod(dir string, opts initOptions) error {
	var manifestName string
	switch opts.format {
	case "json":
		manifestName = "manifest.json"
	case "yaml":
		manifestName = "manifest.yaml"
	default:
		return fmt.Errorf("unknown manifest format %q (must be json or yaml)", opts.format)
	}

	existing, err := plugins.LoadManifestFromDir(dir)
	switch {
	case err == nil && !opts.force:
		return fmt.Errorf("%s already contains the mod %s. Use --force to overwrite", dir, existing.UniqueID)
	case err != nil && !errors.Is(err, plugins.ErrNoManifest) && !opts.force:
		return fmt.Errorf("%s has an unreadable manifest: %w", dir, err)
	}

	name := opts.name
	if name == "" {
		name = opts.id[strings.LastIndex(opts.id, ".")+1:]
	}
	manifest := &plugins.Manifest{
		UniqueID:          opts.id,
		Name:              name,
		Version:           opts.version,
		MinimumAPIVersion: a.cfg.Plugins.APIVersion,
	}
	if opts.contentPackFor != "" {
		manifest.ContentPackFor = &plugins.ContentPackFor{UniqueID: opts.contentPackFor}
	} else {
		manifest.EntryPoint = "src"
	}

	var problems []string
	for _, e := range plugins.ValidateManifest(manifest) {
		if e.Severity == "error" {
			problems = append(problems, e.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid mod: %s", strings.Join(problems, "; "))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, other := range plugins.ManifestFileNames {
		if other != manifestName {
			_ = os.Remove(filepath.Join(dir, other))
		}
	}
	if err := plugins.SaveManifest(manifest, filepath.Join(dir, manifestName)); err != nil {
		return err
	}

	if manifest.EntryPoint != "" {
		src := filepath.Join(dir, "src", "mod.go")
		if _, err := os.Stat(src); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", filepath.Dir(src), err)
			}
			if err := os.WriteFile(src, []byte(modTemplate), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", src, err)
			}
		}
	}

	abs, _ := filepath.Abs(dir)
	fmt.Fprintf(a.out, "Created mod %s in %s\n", manifest.UniqueID, abs)
	if manifest.EntryPoint != "" {
		fmt.Fprintln(a.out, "Next: edit src/mod.go, then run 'modhost check' to validate it.")
	}
	return nil
}
