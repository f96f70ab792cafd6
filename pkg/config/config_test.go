package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "MODHOST_TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "MODHOST_TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", envValue: "true", want: true},
		{name: "returns true for '1'", envValue: "1", want: true},
		{name: "returns true for 'TRUE'", envValue: "TRUE", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns false for garbage", defaultValue: true, envValue: "yes please", want: false},
		{name: "returns default when unset", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("MODHOST_TEST_BOOL", tt.envValue)
			}
			assert.Equal(t, tt.want, getEnvBool("MODHOST_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetEnvIntAndDuration(t *testing.T) {
	t.Setenv("MODHOST_TEST_INT", "12")
	t.Setenv("MODHOST_TEST_BAD_INT", "twelve")
	t.Setenv("MODHOST_TEST_DURATION", "90s")
	t.Setenv("MODHOST_TEST_BAD_DURATION", "soon")

	assert.Equal(t, 12, getEnvInt("MODHOST_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("MODHOST_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("MODHOST_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("MODHOST_TEST_BAD_DURATION", time.Second))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("MODHOST_TEST_LIST", " alice.Core, ,bob.Tools ")

	assert.Equal(t, []string{"alice.Core", "bob.Tools"}, getEnvList("MODHOST_TEST_LIST", ",", nil))
	assert.Equal(t, []string{"x"}, getEnvList("MODHOST_TEST_LIST_UNSET", ",", []string{"x"}))
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, plugins.GetDefaultPluginDirectories(), cfg.Plugins.Dirs)
	assert.Equal(t, plugins.CurrentAPIVersion, cfg.Plugins.APIVersion)
	assert.True(t, cfg.Plugins.RewriteEnabled)
	assert.False(t, cfg.Updates.Enabled)
	assert.Equal(t, "@every 6h", cfg.Updates.Schedule)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugins:
  dirs: [/srv/mods]
  paranoid_warnings: true
updates:
  enabled: true
  schedule: "0 */6 * * *"
observability:
  log_level: debug
`), 0o644))

	t.Setenv("MODHOST_SUPPRESS_UPDATE_CHECKS", "alice.Core")
	t.Setenv("MODHOST_LOG_LEVEL", "warn")
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/mods"}, cfg.Plugins.Dirs)
	assert.True(t, cfg.Plugins.ParanoidWarnings)
	assert.Equal(t, []string{"alice.Core"}, cfg.Plugins.SuppressUpdateChecks)
	assert.True(t, cfg.Updates.Enabled)
	assert.Equal(t, "0 */6 * * *", cfg.Updates.Schedule)
	// file wins over environment
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Updates.Timeout)
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "no plugin dirs",
			mutate:  func(c *Config) { c.Plugins.Dirs = nil },
			wantErr: "plugin directory",
		},
		{
			name:    "bad api version",
			mutate:  func(c *Config) { c.Plugins.APIVersion = "one" },
			wantErr: "invalid API version",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Observability.LogFormat = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "bad update url",
			mutate: func(c *Config) {
				c.Updates.Enabled = true
				c.Updates.ServerURL = "not a url"
			},
			wantErr: "invalid update server URL",
		},
		{
			name: "bad update schedule",
			mutate: func(c *Config) {
				c.Updates.Enabled = true
				c.Updates.Schedule = "every so often"
			},
			wantErr: "invalid update schedule",
		},
		{
			name: "schedule ignored when updates disabled",
			mutate: func(c *Config) {
				c.Updates.Schedule = "every so often"
			},
		},
		{
			name:    "server without address",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server address",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
