package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidVersion(t *testing.T) {
	tests := []struct {
		version string
		valid   bool
	}{
		{"1.0.0", true},
		{"v1.0.0", true},
		{"1.2.3-beta.1", true},
		{"1.2.3+build-5", true},
		{"1.2", false},
		{"1", false},
		{"", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidVersion(tt.version))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, -1, CompareVersions("1.0.0", "1.1.0"))
	assert.Equal(t, 0, CompareVersions("v1.1.0", "1.1.0"))
	assert.Equal(t, 1, CompareVersions("2.0.0", "1.9.9"))
	assert.Equal(t, -1, CompareVersions("1.0.0-beta", "1.0.0"))
}

func TestIsOlderThan(t *testing.T) {
	assert.True(t, IsOlderThan("1.0.0", "1.2.0"))
	assert.False(t, IsOlderThan("1.2.0", "1.2.0"))
	assert.False(t, IsOlderThan("1.0.0", ""))
}
