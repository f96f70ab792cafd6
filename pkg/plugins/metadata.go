package plugins

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinummonkey/modhost/pkg/sdk"
)

// Status is the lifecycle state of one candidate plugin.
type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
	StatusLoaded  Status = "loaded"
)

// FailReason classifies why a plugin was skipped.
type FailReason string

const (
	ReasonNone                FailReason = ""
	ReasonInvalidManifest     FailReason = "invalid_manifest"
	ReasonMissingDependencies FailReason = "missing_dependencies"
	ReasonIncompatible        FailReason = "incompatible"
	ReasonLoadFailed          FailReason = "load_failed"
)

// Warning is a non-fatal issue attached to a plugin.
type Warning string

const (
	WarningNoUpdateKeys       Warning = "no_update_keys"
	WarningBrokenCodeLoaded   Warning = "broken_code_loaded"
	WarningAccessesShell      Warning = "accesses_shell"
	WarningAccessesFilesystem Warning = "accesses_filesystem"
	WarningUsesUnsafe         Warning = "uses_unsafe"
	WarningUsesDynamic        Warning = "uses_dynamic"
	WarningRewritten          Warning = "rewritten"
)

// DataRecordStatus is the compatibility verdict stored in the mod database.
type DataRecordStatus string

const (
	RecordOK               DataRecordStatus = "ok"
	RecordAssumeCompatible DataRecordStatus = "assume_compatible"
	RecordAssumeBroken     DataRecordStatus = "assume_broken"
	RecordObsolete         DataRecordStatus = "obsolete"
)

// DataRecord is the host's own knowledge about a plugin id.
type DataRecord struct {
	ID           string
	Status       DataRecordStatus
	StatusReason string
	PageURL      string
	UpperVersion string // status applies up to and including this version; empty means all
}

// AppliesTo reports whether the record's status covers the given version.
func (r *DataRecord) AppliesTo(version string) bool {
	if r == nil {
		return false
	}
	if r.UpperVersion == "" {
		return true
	}
	return CompareVersions(version, r.UpperVersion) <= 0
}

// Metadata is the mutable wrapper the host keeps for one candidate plugin.
// Status moves from pending to failed or loaded exactly once.
type Metadata struct {
	Manifest    *Manifest
	Dir         string
	DisplayName string
	DataRecord  *DataRecord

	Status      Status
	FailReason  FailReason
	Error       string // safe to show to users
	ErrorDetail string // developer-facing

	// Degraded is set when a loaded mod failed in Entry or while its API was
	// collected. It stays loaded but publishes nothing.
	Degraded bool

	// Channel is the log channel assigned on load.
	Channel string

	Mod         sdk.Mod
	ContentPack sdk.ContentPack
	API         any

	// FakeContentPacks are owned by this plugin and released with it.
	FakeContentPacks []sdk.ContentPack

	warnings map[Warning]struct{}
}

// NewMetadata creates a pending candidate for a manifest found in dir.
func NewMetadata(manifest *Manifest, dir string) *Metadata {
	m := &Metadata{
		Manifest: manifest,
		Dir:      dir,
		Status:   StatusPending,
	}
	m.DisplayName = m.defaultDisplayName()
	return m
}

func (m *Metadata) defaultDisplayName() string {
	if m.Manifest != nil {
		if name := strings.TrimSpace(m.Manifest.Name); name != "" {
			return name
		}
		if id := strings.TrimSpace(m.Manifest.UniqueID); id != "" {
			return id
		}
	}
	return filepath.Base(m.Dir)
}

// ID returns the manifest id, or an empty string when there is no manifest.
func (m *Metadata) ID() string {
	if m.Manifest == nil {
		return ""
	}
	return m.Manifest.UniqueID
}

// HasID reports whether the plugin's id matches id, ignoring case.
func (m *Metadata) HasID(id string) bool {
	return m.Manifest != nil && m.Manifest.UniqueID != "" && SameID(m.Manifest.UniqueID, id)
}

// IsContentPack reports whether this is a data-only plugin.
func (m *Metadata) IsContentPack() bool {
	return m.Manifest != nil && m.Manifest.IsContentPack()
}

// SetFailed marks the plugin failed. Calls after the first are ignored so the
// earliest cause is kept.
func (m *Metadata) SetFailed(reason FailReason, phrase, detail string) {
	if m.Status != StatusPending {
		return
	}
	m.Status = StatusFailed
	m.FailReason = reason
	m.Error = phrase
	m.ErrorDetail = detail
}

// SetLoaded marks the plugin loaded.
func (m *Metadata) SetLoaded(channel string) error {
	if m.Status != StatusPending {
		return fmt.Errorf("cannot mark %s loaded from status %s", m.DisplayName, m.Status)
	}
	m.Status = StatusLoaded
	m.Channel = channel
	return nil
}

// SetDegraded records a failure of an already-loaded mod.
func (m *Metadata) SetDegraded(phrase, detail string) {
	m.Degraded = true
	m.API = nil
	if m.FailReason == ReasonNone {
		m.FailReason = ReasonLoadFailed
		m.Error = phrase
		m.ErrorDetail = detail
	}
}

// SetWarning attaches a warning.
func (m *Metadata) SetWarning(w Warning) {
	if m.warnings == nil {
		m.warnings = make(map[Warning]struct{})
	}
	m.warnings[w] = struct{}{}
}

// HasWarning reports whether w is attached.
func (m *Metadata) HasWarning(w Warning) bool {
	_, ok := m.warnings[w]
	return ok
}

// Warnings returns the attached warnings in a stable order.
func (m *Metadata) Warnings() []Warning {
	result := make([]Warning, 0, len(m.warnings))
	for w := range m.warnings {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// HasUpdateKeys reports whether the manifest names at least one non-blank update key.
func (m *Metadata) HasUpdateKeys() bool {
	if m.Manifest == nil {
		return false
	}
	for _, key := range m.Manifest.UpdateKeys {
		if strings.TrimSpace(key) != "" {
			return true
		}
	}
	return false
}

// ReleaseFakeContentPacks drops the content packs this plugin created.
func (m *Metadata) ReleaseFakeContentPacks() int {
	n := len(m.FakeContentPacks)
	m.FakeContentPacks = nil
	return n
}

// SortByDisplayName sorts candidates by display name (case-insensitive), then id.
func SortByDisplayName(candidates []*Metadata) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return LessByDisplayName(candidates[i], candidates[j])
	})
}

// LessByDisplayName is the deterministic ordering used for ties.
func LessByDisplayName(a, b *Metadata) bool {
	an, bn := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
	if an != bn {
		return an < bn
	}
	return NormalizeID(a.ID()) < NormalizeID(b.ID())
}
