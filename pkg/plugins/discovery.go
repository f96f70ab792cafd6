package plugins

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Discoverer scans plugin root directories for manifests.
type Discoverer struct {
	roots []string
	log   *logrus.Logger
}

// NewDiscoverer creates a discoverer over the given root directories.
func NewDiscoverer(roots []string, log *logrus.Logger) *Discoverer {
	if log == nil {
		log = logrus.New()
	}

	return &Discoverer{
		roots: roots,
		log:   log,
	}
}

// Discover returns one pending candidate per plugin folder. Folders whose
// manifest can't be read are returned as failed candidates so they show up
// in the load report. Folders starting with a dot are ignored, and folders
// without a manifest are searched one level deeper.
func (d *Discoverer) Discover() []*Metadata {
	var candidates []*Metadata

	for _, root := range d.roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			d.log.Debugf("Plugin directory does not exist: %s", root)
			continue
		}
		candidates = append(candidates, d.scan(root, 0)...)
	}

	return candidates
}

func (d *Discoverer) scan(dir string, depth int) []*Metadata {
	entries, err := os.ReadDir(dir)
	if err != nil {
		d.log.Warnf("Failed to read plugin directory %s: %v", dir, err)
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var candidates []*Metadata
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		pluginDir := filepath.Join(dir, entry.Name())
		manifestPath, err := FindManifest(pluginDir)
		if err != nil {
			if depth == 0 {
				nested := d.scan(pluginDir, depth+1)
				if len(nested) > 0 {
					candidates = append(candidates, nested...)
					continue
				}
			}
			meta := NewMetadata(nil, pluginDir)
			meta.SetFailed(ReasonInvalidManifest, "it doesn't have a manifest.", err.Error())
			candidates = append(candidates, meta)
			continue
		}

		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			meta := NewMetadata(nil, pluginDir)
			meta.SetFailed(ReasonInvalidManifest, "its manifest is invalid.", err.Error())
			candidates = append(candidates, meta)
			continue
		}

		candidates = append(candidates, NewMetadata(manifest, pluginDir))
	}

	return candidates
}

// GetDefaultPluginDirectories returns the default plugin search directories
func GetDefaultPluginDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}

	return []string{
		filepath.Join(homeDir, ".modhost", "mods"),
		"./mods",
	}
}
