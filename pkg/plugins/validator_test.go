package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCodeCandidate creates a plugin folder with a one-file entry point.
func newCodeCandidate(t *testing.T, root, id string, mutate func(*Manifest)) *Metadata {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	manifest := &Manifest{
		UniqueID:   id,
		Name:       id,
		Version:    "1.0.0",
		EntryPoint: "main.go",
		UpdateKeys: []string{"GitHub:example/" + id},
	}
	if mutate != nil {
		mutate(manifest)
	}
	return NewMetadata(manifest, dir)
}

func newTestValidator(opts ValidatorOptions) *Validator {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return NewValidator(opts, logger)
}

func TestValidator_ValidCandidate(t *testing.T) {
	root := t.TempDir()
	meta := newCodeCandidate(t, root, "alice.Farming", nil)

	results := newTestValidator(ValidatorOptions{}).Validate([]*Metadata{meta})

	require.Len(t, results, 1)
	assert.Nil(t, results[0].Err)
	assert.Equal(t, StatusPending, meta.Status)
	assert.False(t, meta.HasWarning(WarningNoUpdateKeys))
}

func TestValidator_MissingRequiredFields(t *testing.T) {
	root := t.TempDir()
	meta := newCodeCandidate(t, root, "alice.Farming", func(m *Manifest) {
		m.Name = ""
		m.Version = ""
	})

	results := newTestValidator(ValidatorOptions{}).Validate([]*Metadata{meta})

	require.NotNil(t, results[0].Err)
	assert.Equal(t, ReasonInvalidManifest, meta.FailReason)
	assert.Equal(t, "its manifest is missing required fields (Name, Version).", meta.Error)
}

func TestValidator_InvalidID(t *testing.T) {
	root := t.TempDir()
	meta := newCodeCandidate(t, root, "bad", func(m *Manifest) { m.UniqueID = "bad id!" })

	newTestValidator(ValidatorOptions{}).Validate([]*Metadata{meta})

	assert.Equal(t, StatusFailed, meta.Status)
	assert.Contains(t, meta.Error, "invalid ID")
}

func TestValidator_DuplicateIDsFailBoth(t *testing.T) {
	root := t.TempDir()
	first := newCodeCandidate(t, root, "alice.Farming", nil)
	second := newCodeCandidate(t, root, "ALICE.farming", nil)
	other := newCodeCandidate(t, root, "bob.Core", nil)

	newTestValidator(ValidatorOptions{}).Validate([]*Metadata{first, second, other})

	for _, meta := range []*Metadata{first, second} {
		assert.Equal(t, StatusFailed, meta.Status)
		assert.Equal(t, ReasonInvalidManifest, meta.FailReason)
		assert.Contains(t, meta.Error, "is used by multiple mods")
	}
	assert.Equal(t, StatusPending, other.Status)
}

func TestValidator_MinimumAPIVersion(t *testing.T) {
	root := t.TempDir()
	tooNew := newCodeCandidate(t, root, "alice.Future", func(m *Manifest) { m.MinimumAPIVersion = "9.0.0" })
	fine := newCodeCandidate(t, root, "alice.Present", func(m *Manifest) { m.MinimumAPIVersion = "1.0.0" })

	newTestValidator(ValidatorOptions{APIVersion: "1.2.0"}).Validate([]*Metadata{tooNew, fine})

	assert.Equal(t, StatusFailed, tooNew.Status)
	assert.Contains(t, tooNew.Error, "needs a newer host version")
	assert.Equal(t, StatusPending, fine.Status)
}

func TestValidator_MinimumHostVersion(t *testing.T) {
	manifest, err := ParseManifest([]byte(`{"UniqueID":"alice.Future","Name":"Future","Version":"1.0.0","EntryPoint":"main.go","MinimumHostVersion":"99.0.0"}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, "99.0.0", manifest.MinimumHostVersion)

	root := t.TempDir()
	tooNew := newCodeCandidate(t, root, "alice.Future", func(m *Manifest) { m.MinimumHostVersion = manifest.MinimumHostVersion })
	fine := newCodeCandidate(t, root, "alice.Present", func(m *Manifest) { m.MinimumHostVersion = "1.4.0" })

	newTestValidator(ValidatorOptions{HostVersion: "1.4.2"}).Validate([]*Metadata{tooNew, fine})

	assert.Equal(t, StatusFailed, tooNew.Status)
	assert.Equal(t, ReasonInvalidManifest, tooNew.FailReason)
	assert.Equal(t, "it needs a newer host version (99.0.0 or later).", tooNew.Error)
	assert.Equal(t, "host version is 1.4.2", tooNew.ErrorDetail)
	assert.Equal(t, StatusPending, fine.Status)
}

func TestValidator_MinimumHostVersion_DevBuild(t *testing.T) {
	root := t.TempDir()
	meta := newCodeCandidate(t, root, "alice.Future", func(m *Manifest) { m.MinimumHostVersion = "99.0.0" })

	newTestValidator(ValidatorOptions{HostVersion: "dev"}).Validate([]*Metadata{meta})

	assert.Equal(t, StatusPending, meta.Status)
}

func TestValidator_MinimumHostVersion_Malformed(t *testing.T) {
	root := t.TempDir()
	meta := newCodeCandidate(t, root, "alice.Future", func(m *Manifest) { m.MinimumHostVersion = "soon" })

	newTestValidator(ValidatorOptions{HostVersion: "1.4.2"}).Validate([]*Metadata{meta})

	assert.Equal(t, StatusFailed, meta.Status)
	assert.Equal(t, ReasonInvalidManifest, meta.FailReason)
	assert.Contains(t, meta.ErrorDetail, "MinimumHostVersion")
}

func TestValidator_EntryPoint(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Manifest)
		contains string
	}{
		{
			name:     "missing file",
			mutate:   func(m *Manifest) { m.EntryPoint = "nope.go" },
			contains: "doesn't exist",
		},
		{
			name:     "outside folder",
			mutate:   func(m *Manifest) { m.EntryPoint = "../other/main.go" },
			contains: "points outside the mod folder",
		},
		{
			name:     "neither entry nor content pack",
			mutate:   func(m *Manifest) { m.EntryPoint = "" },
			contains: "no EntryPoint or ContentPackFor",
		},
		{
			name: "both entry and content pack",
			mutate: func(m *Manifest) {
				m.ContentPackFor = &ContentPackFor{UniqueID: "bob.Core"}
			},
			contains: "mutually exclusive",
		},
		{
			name:     "unknown builtin",
			mutate:   func(m *Manifest) { m.EntryPoint = "builtin:nothing" },
			contains: "doesn't match a built-in mod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := newCodeCandidate(t, t.TempDir(), "alice.Farming", tt.mutate)
			newTestValidator(ValidatorOptions{}).Validate([]*Metadata{meta})

			assert.Equal(t, StatusFailed, meta.Status)
			assert.Equal(t, ReasonInvalidManifest, meta.FailReason)
			assert.Contains(t, meta.Error, tt.contains)
		})
	}
}

func TestValidator_KnownBuiltin(t *testing.T) {
	meta := newCodeCandidate(t, t.TempDir(), "alice.Native", func(m *Manifest) { m.EntryPoint = "builtin:native" })

	newTestValidator(ValidatorOptions{
		HasBuiltin: func(name string) bool { return name == "native" },
	}).Validate([]*Metadata{meta})

	assert.Equal(t, StatusPending, meta.Status)
}

func TestValidator_EmptyDependencyID(t *testing.T) {
	meta := newCodeCandidate(t, t.TempDir(), "alice.Farming", func(m *Manifest) {
		m.Dependencies = []Dependency{{UniqueID: " "}}
	})

	newTestValidator(ValidatorOptions{}).Validate([]*Metadata{meta})

	assert.Equal(t, StatusFailed, meta.Status)
	assert.Contains(t, meta.ErrorDetail, "dependency has no UniqueID")
}

func TestValidator_NoUpdateKeysWarning(t *testing.T) {
	root := t.TempDir()
	noKeys := newCodeCandidate(t, root, "alice.NoKeys", func(m *Manifest) { m.UpdateKeys = nil })
	suppressed := newCodeCandidate(t, root, "alice.Suppressed", func(m *Manifest) { m.UpdateKeys = []string{" "} })

	newTestValidator(ValidatorOptions{SuppressUpdateChecks: []string{"ALICE.suppressed"}}).
		Validate([]*Metadata{noKeys, suppressed})

	assert.True(t, noKeys.HasWarning(WarningNoUpdateKeys))
	assert.Equal(t, StatusPending, noKeys.Status, "warning must not fail the plugin")
	assert.False(t, suppressed.HasWarning(WarningNoUpdateKeys))
}

func TestValidator_DataRecords(t *testing.T) {
	root := t.TempDir()
	broken := newCodeCandidate(t, root, "alice.Broken", nil)
	fixed := newCodeCandidate(t, root, "alice.Fixed", func(m *Manifest) { m.Version = "2.0.0" })
	obsolete := newCodeCandidate(t, root, "alice.Obsolete", nil)

	records := map[string]*DataRecord{
		"alice.broken":   {Status: RecordAssumeBroken, PageURL: "https://example.com/broken"},
		"alice.fixed":    {Status: RecordAssumeBroken, UpperVersion: "1.5.0"},
		"alice.obsolete": {Status: RecordObsolete, StatusReason: "merged into the host"},
	}

	newTestValidator(ValidatorOptions{
		DataRecord: func(id string) *DataRecord { return records[NormalizeID(id)] },
	}).Validate([]*Metadata{broken, fixed, obsolete})

	assert.Equal(t, ReasonIncompatible, broken.FailReason)
	assert.Equal(t, "it's no longer compatible. Please check for a new version at https://example.com/broken or "+DefaultUpdatePageURL, broken.Error)
	assert.Equal(t, StatusPending, fixed.Status)
	assert.Equal(t, "it's obsolete: merged into the host", obsolete.Error)
}

func TestValidator_KeepsEarlierFailure(t *testing.T) {
	meta := NewMetadata(nil, "/mods/broken")
	meta.SetFailed(ReasonInvalidManifest, "its manifest is invalid.", "syntax error")

	results := newTestValidator(ValidatorOptions{}).Validate([]*Metadata{meta})

	require.NotNil(t, results[0].Err)
	assert.Equal(t, "its manifest is invalid.", results[0].Err.Phrase)
	assert.Equal(t, "syntax error", meta.ErrorDetail)
}

func TestValidateManifest(t *testing.T) {
	errs := ValidateManifest(&Manifest{UniqueID: "a", Name: "A", Version: "1.0"})

	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "Version")
	assert.Contains(t, fields, "UpdateKeys")
}
