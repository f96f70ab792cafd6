package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// BuiltinPrefix marks an entry point served by a native in-tree mod.
const BuiltinPrefix = "builtin:"

// DefaultUpdatePageURL is suggested when a plugin is no longer compatible.
const DefaultUpdatePageURL = "https://modhost.dev/mods"

var pluginIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Failure is the outcome of a failed pipeline stage for one plugin.
type Failure struct {
	Reason FailReason
	Phrase string // user-facing
	Detail string // developer-facing
}

func (f *Failure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Reason, f.Phrase, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Phrase)
}

// Fail applies a stage failure to the metadata.
func (m *Metadata) Fail(f *Failure) {
	m.SetFailed(f.Reason, f.Phrase, f.Detail)
}

// ValidatorOptions configures manifest validation.
type ValidatorOptions struct {
	APIVersion string
	// HostVersion is the running host's version. Development builds with a
	// non-semver version skip the MinimumHostVersion check.
	HostVersion          string
	SuppressUpdateChecks []string
	// HasBuiltin reports whether a builtin:<name> entry point is known.
	HasBuiltin func(name string) bool
	// DataRecord looks up the host's record for a plugin id.
	DataRecord func(id string) *DataRecord
}

// Validator checks candidate manifests individually and as a set.
type Validator struct {
	opts     ValidatorOptions
	suppress map[string]bool
	logger   *logrus.Logger
}

// NewValidator creates a new manifest validator
func NewValidator(opts ValidatorOptions, logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.APIVersion == "" {
		opts.APIVersion = CurrentAPIVersion
	}

	suppress := make(map[string]bool, len(opts.SuppressUpdateChecks))
	for _, id := range opts.SuppressUpdateChecks {
		suppress[NormalizeID(id)] = true
	}

	return &Validator{
		opts:     opts,
		suppress: suppress,
		logger:   logger,
	}
}

// ValidationResult is the per-candidate outcome of Validate. Err is nil when
// the candidate may proceed to dependency resolution.
type ValidationResult struct {
	Metadata *Metadata
	Err      *Failure
}

// Validate checks every candidate, marking failures on the metadata. Failed
// candidates are not removed; callers filter on Status.
func (v *Validator) Validate(candidates []*Metadata) []ValidationResult {
	for _, meta := range candidates {
		if meta.Manifest != nil && meta.Manifest.UniqueID != "" &&
			!v.suppress[NormalizeID(meta.Manifest.UniqueID)] && !meta.HasUpdateKeys() {
			meta.SetWarning(WarningNoUpdateKeys)
		}

		if meta.Status == StatusFailed {
			continue
		}
		if meta.DataRecord == nil && v.opts.DataRecord != nil && meta.Manifest != nil {
			meta.DataRecord = v.opts.DataRecord(meta.Manifest.UniqueID)
		}
		if f := v.validateOne(meta); f != nil {
			meta.Fail(f)
		}
	}

	RejectDuplicateIDs(candidates)

	results := make([]ValidationResult, 0, len(candidates))
	for _, meta := range candidates {
		result := ValidationResult{Metadata: meta}
		if meta.Status == StatusFailed {
			result.Err = &Failure{Reason: meta.FailReason, Phrase: meta.Error, Detail: meta.ErrorDetail}
			v.logger.WithField("mod", meta.DisplayName).Debugf("Skipped: %s", meta.Error)
		}
		results = append(results, result)
	}
	return results
}

func (v *Validator) validateOne(meta *Metadata) *Failure {
	manifest := meta.Manifest
	if manifest == nil {
		return &Failure{Reason: ReasonInvalidManifest, Phrase: "it doesn't have a manifest."}
	}

	if record := meta.DataRecord; record != nil && record.AppliesTo(manifest.Version) {
		switch record.Status {
		case RecordObsolete:
			return &Failure{Reason: ReasonInvalidManifest, Phrase: fmt.Sprintf("it's obsolete: %s", record.StatusReason)}
		case RecordAssumeBroken:
			return &Failure{
				Reason: ReasonIncompatible,
				Phrase: IncompatiblePhrase(record),
				Detail: record.StatusReason,
			}
		}
	}

	if errs := ValidateManifest(manifest); len(errs) > 0 {
		var missing []string
		var details []string
		for _, e := range errs {
			if e.Severity != "error" {
				continue
			}
			if strings.HasSuffix(e.Message, "is required") {
				missing = append(missing, e.Field)
			}
			details = append(details, e.Error())
		}
		if len(missing) > 0 {
			return &Failure{
				Reason: ReasonInvalidManifest,
				Phrase: fmt.Sprintf("its manifest is missing required fields (%s).", strings.Join(missing, ", ")),
				Detail: strings.Join(details, "; "),
			}
		}
		if len(details) > 0 {
			return &Failure{
				Reason: ReasonInvalidManifest,
				Phrase: "its manifest is invalid.",
				Detail: strings.Join(details, "; "),
			}
		}
	}

	if !pluginIDRegex.MatchString(manifest.UniqueID) {
		return &Failure{
			Reason: ReasonInvalidManifest,
			Phrase: "its manifest specifies an invalid ID (IDs must only contain letters, numbers, underscores, periods, or hyphens).",
		}
	}

	if manifest.MinimumAPIVersion != "" && IsOlderThan(v.opts.APIVersion, manifest.MinimumAPIVersion) {
		return &Failure{
			Reason: ReasonInvalidManifest,
			Phrase: fmt.Sprintf("it needs a newer host version (API %s or later).", manifest.MinimumAPIVersion),
			Detail: fmt.Sprintf("host API version is %s", v.opts.APIVersion),
		}
	}

	if manifest.MinimumHostVersion != "" && IsValidVersion(v.opts.HostVersion) &&
		IsOlderThan(v.opts.HostVersion, manifest.MinimumHostVersion) {
		return &Failure{
			Reason: ReasonInvalidManifest,
			Phrase: fmt.Sprintf("it needs a newer host version (%s or later).", manifest.MinimumHostVersion),
			Detail: fmt.Sprintf("host version is %s", v.opts.HostVersion),
		}
	}

	if manifest.IsContentPack() {
		if manifest.EntryPoint != "" {
			return &Failure{
				Reason: ReasonInvalidManifest,
				Phrase: "its manifest sets both EntryPoint and ContentPackFor, which are mutually exclusive.",
			}
		}
	} else if f := v.validateEntryPoint(meta); f != nil {
		return f
	}

	return nil
}

func (v *Validator) validateEntryPoint(meta *Metadata) *Failure {
	entry := meta.Manifest.EntryPoint
	if entry == "" {
		return &Failure{
			Reason: ReasonInvalidManifest,
			Phrase: "its manifest has no EntryPoint or ContentPackFor field; must specify one.",
		}
	}

	if name, ok := strings.CutPrefix(entry, BuiltinPrefix); ok {
		if v.opts.HasBuiltin == nil || !v.opts.HasBuiltin(name) {
			return &Failure{
				Reason: ReasonInvalidManifest,
				Phrase: fmt.Sprintf("its EntryPoint '%s' doesn't match a built-in mod.", entry),
			}
		}
		return nil
	}

	if !filepath.IsLocal(filepath.FromSlash(entry)) {
		return &Failure{
			Reason: ReasonInvalidManifest,
			Phrase: fmt.Sprintf("its EntryPoint '%s' points outside the mod folder.", entry),
		}
	}

	path := filepath.Join(meta.Dir, filepath.FromSlash(entry))
	info, err := os.Stat(path)
	if err != nil {
		return &Failure{
			Reason: ReasonInvalidManifest,
			Phrase: fmt.Sprintf("its EntryPoint file '%s' doesn't exist.", entry),
			Detail: err.Error(),
		}
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".go" {
			return &Failure{
				Reason: ReasonInvalidManifest,
				Phrase: fmt.Sprintf("its EntryPoint '%s' isn't a Go source file.", entry),
			}
		}
		return nil
	}

	matches, _ := filepath.Glob(filepath.Join(path, "*.go"))
	for _, match := range matches {
		if !strings.HasSuffix(match, "_test.go") {
			return nil
		}
	}
	return &Failure{
		Reason: ReasonInvalidManifest,
		Phrase: fmt.Sprintf("its EntryPoint folder '%s' has no Go source files.", entry),
	}
}

// RejectDuplicateIDs fails every candidate sharing an id with another,
// ignoring case. Candidates that already failed keep their first reason but
// still count as a collision.
func RejectDuplicateIDs(candidates []*Metadata) {
	byID := make(map[string][]*Metadata)
	for _, meta := range candidates {
		if meta.Manifest == nil || strings.TrimSpace(meta.Manifest.UniqueID) == "" {
			continue
		}
		key := NormalizeID(meta.Manifest.UniqueID)
		byID[key] = append(byID[key], meta)
	}

	for _, group := range byID {
		if len(group) < 2 {
			continue
		}
		dirs := make([]string, 0, len(group))
		for _, meta := range group {
			dirs = append(dirs, meta.Dir)
		}
		sort.Strings(dirs)
		for _, meta := range group {
			meta.SetFailed(
				ReasonInvalidManifest,
				fmt.Sprintf("its unique ID '%s' is used by multiple mods (%s).", meta.Manifest.UniqueID, strings.Join(dirs, ", ")),
				"",
			)
		}
	}
}

// ValidateManifest performs field-level validation on a plugin manifest
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	// Required fields
	if strings.TrimSpace(manifest.UniqueID) == "" {
		errors = append(errors, ValidationError{
			Field:    "UniqueID",
			Message:  "UniqueID is required",
			Severity: "error",
		})
	}

	if strings.TrimSpace(manifest.Name) == "" {
		errors = append(errors, ValidationError{
			Field:    "Name",
			Message:  "Name is required",
			Severity: "error",
		})
	}

	if strings.TrimSpace(manifest.Version) == "" {
		errors = append(errors, ValidationError{
			Field:    "Version",
			Message:  "Version is required",
			Severity: "error",
		})
	} else if !IsValidVersion(manifest.Version) {
		errors = append(errors, ValidationError{
			Field:    "Version",
			Message:  fmt.Sprintf("Invalid semver format: %s", manifest.Version),
			Severity: "error",
		})
	}

	if manifest.MinimumAPIVersion != "" && !IsValidVersion(manifest.MinimumAPIVersion) {
		errors = append(errors, ValidationError{
			Field:    "MinimumApiVersion",
			Message:  fmt.Sprintf("Invalid semver format: %s", manifest.MinimumAPIVersion),
			Severity: "error",
		})
	}

	if manifest.MinimumHostVersion != "" && !IsValidVersion(manifest.MinimumHostVersion) {
		errors = append(errors, ValidationError{
			Field:    "MinimumHostVersion",
			Message:  fmt.Sprintf("Invalid semver format: %s", manifest.MinimumHostVersion),
			Severity: "error",
		})
	}

	if manifest.ContentPackFor != nil && strings.TrimSpace(manifest.ContentPackFor.UniqueID) == "" {
		errors = append(errors, ValidationError{
			Field:    "ContentPackFor.UniqueID",
			Message:  "ContentPackFor must name the mod the content pack is for",
			Severity: "error",
		})
	}

	for i, dep := range manifest.Dependencies {
		if strings.TrimSpace(dep.UniqueID) == "" {
			errors = append(errors, ValidationError{
				Field:    fmt.Sprintf("Dependencies[%d].UniqueID", i),
				Message:  "dependency has no UniqueID",
				Severity: "error",
			})
			continue
		}
		if dep.MinimumVersion != "" && !IsValidVersion(dep.MinimumVersion) {
			errors = append(errors, ValidationError{
				Field:    fmt.Sprintf("Dependencies[%d].MinimumVersion", i),
				Message:  fmt.Sprintf("Invalid semver format: %s", dep.MinimumVersion),
				Severity: "error",
			})
		}
	}

	if len(manifest.UpdateKeys) == 0 {
		errors = append(errors, ValidationError{
			Field:    "UpdateKeys",
			Message:  "no update keys; update checks are disabled",
			Severity: "warning",
		})
	}

	return errors
}

// IncompatiblePhrase builds the user-facing message for code that can't be
// loaded with the current host.
func IncompatiblePhrase(record *DataRecord) string {
	urls := []string{DefaultUpdatePageURL}
	if record != nil && record.PageURL != "" {
		urls = append([]string{record.PageURL}, urls...)
	}
	return fmt.Sprintf("it's no longer compatible. Please check for a new version at %s", strings.Join(urls, " or "))
}
