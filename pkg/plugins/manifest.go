package plugins

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// ManifestFileNames are checked in order inside each plugin directory.
var ManifestFileNames = []string{"manifest.json", "manifest.yaml", "manifest.yml"}

// ErrNoManifest is returned when a directory holds no manifest file.
var ErrNoManifest = errors.New("no manifest found")

// LoadManifest loads and parses a plugin manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data, filepath.Ext(path))
}

// ParseManifest decodes manifest data; ext selects JSON (".json") or YAML.
func ParseManifest(data []byte, ext string) (*Manifest, error) {
	var manifest Manifest
	switch strings.ToLower(ext) {
	case ".json":
		if err := sonic.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
	}
	return &manifest, nil
}

// FindManifest returns the manifest path inside dir.
func FindManifest(dir string) (string, error) {
	for _, name := range ManifestFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", ErrNoManifest
}

// LoadManifestFromDir loads a plugin manifest from a directory
func LoadManifestFromDir(dir string) (*Manifest, error) {
	path, err := FindManifest(dir)
	if err != nil {
		return nil, err
	}
	return LoadManifest(path)
}

// SaveManifest saves a plugin manifest to a file, as JSON or YAML by extension.
func SaveManifest(manifest *Manifest, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = sonic.ConfigStd.MarshalIndent(manifest, "", "  ")
	} else {
		data, err = yaml.Marshal(manifest)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}
