package plugins

import (
	"strings"

	"github.com/platinummonkey/modhost/pkg/sdk"
)

// Manifest describes plugin metadata. Unknown fields in the source file are ignored.
type Manifest struct {
	UniqueID           string          `yaml:"UniqueID" json:"UniqueID"`
	Name               string          `yaml:"Name" json:"Name"`                                 // Display name
	Version            string          `yaml:"Version" json:"Version"`                           // Semver
	Author             string          `yaml:"Author,omitempty" json:"Author,omitempty"`
	Description        string          `yaml:"Description,omitempty" json:"Description,omitempty"`
	EntryPoint         string          `yaml:"EntryPoint,omitempty" json:"EntryPoint,omitempty"` // .go file, source dir, or builtin:<name>
	ContentPackFor     *ContentPackFor `yaml:"ContentPackFor,omitempty" json:"ContentPackFor,omitempty"`
	MinimumAPIVersion  string          `yaml:"MinimumApiVersion,omitempty" json:"MinimumApiVersion,omitempty"`
	MinimumHostVersion string          `yaml:"MinimumHostVersion,omitempty" json:"MinimumHostVersion,omitempty"`
	Dependencies       []Dependency    `yaml:"Dependencies,omitempty" json:"Dependencies,omitempty"`
	UpdateKeys         []string        `yaml:"UpdateKeys,omitempty" json:"UpdateKeys,omitempty"`
}

// Dependency is a reference from one manifest to another plugin.
type Dependency struct {
	UniqueID       string `yaml:"UniqueID" json:"UniqueID"`
	MinimumVersion string `yaml:"MinimumVersion,omitempty" json:"MinimumVersion,omitempty"`
	IsRequired     *bool  `yaml:"IsRequired,omitempty" json:"IsRequired,omitempty"` // defaults to true
}

// ContentPackFor marks a manifest as a data-only content pack for another plugin.
type ContentPackFor struct {
	UniqueID       string `yaml:"UniqueID" json:"UniqueID"`
	MinimumVersion string `yaml:"MinimumVersion,omitempty" json:"MinimumVersion,omitempty"`
}

// Required reports whether the dependency must be present for the dependent to load.
func (d Dependency) Required() bool {
	return d.IsRequired == nil || *d.IsRequired
}

// IsContentPack reports whether the manifest describes a data-only plugin.
func (m *Manifest) IsContentPack() bool {
	return m.ContentPackFor != nil
}

// RequiredDependencies returns the required dependencies, including the
// content pack parent when set.
func (m *Manifest) RequiredDependencies() []Dependency {
	var deps []Dependency
	if m.ContentPackFor != nil {
		deps = append(deps, Dependency{
			UniqueID:       m.ContentPackFor.UniqueID,
			MinimumVersion: m.ContentPackFor.MinimumVersion,
		})
	}
	for _, dep := range m.Dependencies {
		if dep.Required() {
			deps = append(deps, dep)
		}
	}
	return deps
}

// AllDependencies returns required and optional dependencies, content pack parent first.
func (m *Manifest) AllDependencies() []Dependency {
	var deps []Dependency
	if m.ContentPackFor != nil {
		deps = append(deps, Dependency{
			UniqueID:       m.ContentPackFor.UniqueID,
			MinimumVersion: m.ContentPackFor.MinimumVersion,
		})
	}
	return append(deps, m.Dependencies...)
}

// Info converts the manifest into the view handed to plugins.
func (m *Manifest) Info() sdk.ModInfo {
	info := sdk.ModInfo{
		UniqueID:    m.UniqueID,
		Name:        m.Name,
		Version:     m.Version,
		Author:      m.Author,
		Description: m.Description,
	}
	if m.ContentPackFor != nil {
		info.ContentPackFor = m.ContentPackFor.UniqueID
	}
	for _, dep := range m.Dependencies {
		info.Dependencies = append(info.Dependencies, dep.UniqueID)
	}
	return info
}

// ManifestFromInfo builds a manifest for a content pack created at runtime.
func ManifestFromInfo(info sdk.ModInfo) *Manifest {
	m := &Manifest{
		UniqueID:    info.UniqueID,
		Name:        info.Name,
		Version:     info.Version,
		Author:      info.Author,
		Description: info.Description,
	}
	if info.ContentPackFor != "" {
		m.ContentPackFor = &ContentPackFor{UniqueID: info.ContentPackFor}
	}
	return m
}

// SameID compares plugin identifiers, which are case-insensitive.
func SameID(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeID returns the lookup key for a plugin identifier.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
