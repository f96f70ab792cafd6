package plugins

import (
	"strings"

	"golang.org/x/mod/semver"
)

// CurrentAPIVersion is the plugin API version implemented by this host.
const CurrentAPIVersion = "1.2.0"

func canonical(version string) string {
	v := strings.TrimSpace(version)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsValidVersion reports whether version is a semantic version, with or without a leading "v".
func IsValidVersion(version string) bool {
	v := canonical(version)
	// semver accepts "v1" and "v1.2" shorthands; manifests must be complete
	return semver.IsValid(v) && strings.Count(strings.SplitN(strings.SplitN(v, "-", 2)[0], "+", 2)[0], ".") == 2
}

// CompareVersions returns -1, 0 or 1. Invalid versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// IsOlderThan reports whether version is strictly older than minimum. An
// empty minimum is always satisfied.
func IsOlderThan(version, minimum string) bool {
	if strings.TrimSpace(minimum) == "" {
		return false
	}
	return CompareVersions(version, minimum) < 0
}
