package assembly

import (
	"fmt"
	"go/build"
	"path/filepath"
	"strings"
)

// Platform identifies the GOOS/GOARCH pair plugin code must build for.
type Platform struct {
	GOOS   string
	GOARCH string
}

// HostPlatform returns the platform of the running host.
func HostPlatform() Platform {
	return Platform{GOOS: build.Default.GOOS, GOARCH: build.Default.GOARCH}
}

func (p Platform) String() string {
	return p.GOOS + "/" + p.GOARCH
}

// legacyArch maps 64-bit architectures to their 32-bit counterpart.
var legacyArch = map[string]string{
	"amd64":    "386",
	"arm64":    "arm",
	"mips64":   "mips",
	"mips64le": "mipsle",
}

// Legacy returns the 32-bit counterpart of p, if it has one.
func (p Platform) Legacy() (Platform, bool) {
	arch, ok := legacyArch[p.GOARCH]
	if !ok {
		return Platform{}, false
	}
	return Platform{GOOS: p.GOOS, GOARCH: arch}, true
}

func (p Platform) context() build.Context {
	ctxt := build.Default
	ctxt.GOOS = p.GOOS
	ctxt.GOARCH = p.GOARCH
	ctxt.CgoEnabled = false
	return ctxt
}

// matching returns the paths whose file name suffix and build constraints
// match the platform.
func (p Platform) matching(paths []string) ([]string, error) {
	ctxt := p.context()
	var result []string
	for _, path := range paths {
		ok, err := ctxt.MatchFile(filepath.Dir(path), filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, path)
		}
	}
	return result, nil
}

// selectFiles picks the source files that build for the platform. When none
// do but some build for its 32-bit counterpart, the plugin was written for a
// 32-bit host.
func selectFiles(paths []string, platform Platform) ([]string, *LoadError) {
	selected, err := platform.matching(paths)
	if err != nil {
		return nil, loadFailed(PhraseLoadFailed, "reading build constraints: %v", err)
	}
	if len(selected) > 0 {
		return selected, nil
	}

	if legacy, ok := platform.Legacy(); ok {
		if old, err := legacy.matching(paths); err == nil && len(old) > 0 {
			return nil, loadFailed(PhraseNeeds64Bit, "no files build for %s; %d build for %s", platform, len(old), legacy)
		}
	}

	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	return nil, loadFailed(PhraseLoadFailed, "no files build for %s (%s)", platform, strings.Join(names, ", "))
}

func sourceFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var result []string
	for _, match := range matches {
		if !strings.HasSuffix(match, "_test.go") {
			result = append(result, match)
		}
	}
	return result, nil
}
