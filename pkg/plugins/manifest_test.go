package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

// TestLoadManifest_JSON tests loading a JSON manifest with unknown fields
func TestLoadManifest_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, "manifest.json")

	data := `{
	"UniqueID": "alice.Farming",
	"Name": "Farming",
	"Version": "1.4.0",
	"EntryPoint": "src",
	"MinimumApiVersion": "1.0.0",
	"Dependencies": [
		{"UniqueID": "bob.Core", "MinimumVersion": "2.0.0"},
		{"UniqueID": "carol.Extras", "IsRequired": false}
	],
	"UpdateKeys": ["GitHub:alice/farming"],
	"SomeFutureField": {"nested": true}
}`
	require.NoError(t, os.WriteFile(manifestPath, []byte(data), 0644))

	loaded, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "alice.Farming", loaded.UniqueID)
	assert.Equal(t, "Farming", loaded.Name)
	assert.Equal(t, "src", loaded.EntryPoint)
	assert.Equal(t, "1.0.0", loaded.MinimumAPIVersion)
	require.Len(t, loaded.Dependencies, 2)
	assert.True(t, loaded.Dependencies[0].Required())
	assert.False(t, loaded.Dependencies[1].Required())
	assert.Equal(t, []string{"GitHub:alice/farming"}, loaded.UpdateKeys)
}

// TestLoadManifest_YAML tests loading a YAML content pack manifest
func TestLoadManifest_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, "manifest.yaml")

	data := `
UniqueID: alice.FarmingPack
Name: Farming Pack
Version: 1.0.0
ContentPackFor:
  UniqueID: alice.Farming
  MinimumVersion: 1.2.0
`
	require.NoError(t, os.WriteFile(manifestPath, []byte(data), 0644))

	loaded, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.True(t, loaded.IsContentPack())
	assert.Equal(t, "alice.Farming", loaded.ContentPackFor.UniqueID)

	deps := loaded.RequiredDependencies()
	require.Len(t, deps, 1)
	assert.Equal(t, "alice.Farming", deps[0].UniqueID)
	assert.Equal(t, "1.2.0", deps[0].MinimumVersion)
}

func TestLoadManifest_NonexistentFile(t *testing.T) {
	loaded, err := LoadManifest("/nonexistent/path/manifest.json")
	assert.Error(t, err)
	assert.Nil(t, loaded)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestLoadManifest_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`{"UniqueID": `), 0644))

	loaded, err := LoadManifest(manifestPath)
	assert.Error(t, err)
	assert.Nil(t, loaded)
	assert.Contains(t, err.Error(), "failed to parse manifest")
}

func TestSaveManifest_LoadsBack(t *testing.T) {
	for _, name := range []string{"manifest.json", "manifest.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			manifest := &Manifest{
				UniqueID:     "alice.Farming",
				Name:         "Farming",
				Version:      "1.0.0",
				EntryPoint:   "main.go",
				Dependencies: []Dependency{{UniqueID: "bob.Core", IsRequired: boolPtr(false)}},
			}
			require.NoError(t, SaveManifest(manifest, path))

			loaded, err := LoadManifest(path)
			require.NoError(t, err)
			assert.Equal(t, manifest.UniqueID, loaded.UniqueID)
			require.Len(t, loaded.Dependencies, 1)
			assert.False(t, loaded.Dependencies[0].Required())
		})
	}
}

func TestFindManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := FindManifest(dir)
	assert.ErrorIs(t, err, ErrNoManifest)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yml"), []byte("UniqueID: a"), 0644))
	path, err := FindManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "manifest.yml"), path)
}

func TestManifestInfo(t *testing.T) {
	manifest := &Manifest{
		UniqueID:       "alice.Pack",
		Name:           "Pack",
		Version:        "1.0.0",
		ContentPackFor: &ContentPackFor{UniqueID: "alice.Farming"},
		Dependencies:   []Dependency{{UniqueID: "bob.Core"}},
	}

	info := manifest.Info()
	assert.True(t, info.IsContentPack())
	assert.Equal(t, "alice.Farming", info.ContentPackFor)
	assert.Equal(t, []string{"bob.Core"}, info.Dependencies)

	back := ManifestFromInfo(info)
	assert.Equal(t, "alice.Farming", back.ContentPackFor.UniqueID)
}
