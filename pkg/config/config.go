package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// EnvConfigFile names an optional YAML file overlaid on the environment.
const EnvConfigFile = "MODHOST_CONFIG"

// Config holds all application configuration
type Config struct {
	Plugins       PluginsConfig       `yaml:"plugins"`
	ModDB         ModDBConfig         `yaml:"moddb"`
	Updates       UpdatesConfig       `yaml:"updates"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PluginsConfig controls discovery and loading.
type PluginsConfig struct {
	Dirs                 []string `yaml:"dirs"`
	APIVersion           string   `yaml:"api_version"`
	HostVersion          string   `yaml:"host_version"`
	SuppressUpdateChecks []string `yaml:"suppress_update_checks"`
	ParanoidWarnings     bool     `yaml:"paranoid_warnings"`
	RewriteEnabled       bool     `yaml:"rewrite_enabled"`
	Watch                bool     `yaml:"watch"`
}

// ModDBConfig locates the mod compatibility database.
type ModDBConfig struct {
	Path string `yaml:"path"` // empty disables the database
}

// UpdatesConfig controls background update checks.
type UpdatesConfig struct {
	Enabled   bool          `yaml:"enabled"`
	ServerURL string        `yaml:"server_url"`
	Schedule  string        `yaml:"schedule"` // cron spec
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	BatchSize int           `yaml:"batch_size"`
}

// ServerConfig holds status server configuration
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled     bool   `yaml:"otel_enabled"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	OTelServiceName string `yaml:"otel_service_name"`
	OTelInsecure    bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from environment variables, then overlays
// the YAML file named by MODHOST_CONFIG when set.
func LoadConfig() (*Config, error) {
	cfg := FromEnv()

	if path := getEnv(EnvConfigFile, ""); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FromEnv builds a config from defaults and MODHOST_* variables.
func FromEnv() *Config {
	return &Config{
		Plugins:       loadPluginsConfig(),
		ModDB:         ModDBConfig{Path: getEnv("MODHOST_MODDB_PATH", "")},
		Updates:       loadUpdatesConfig(),
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
	}
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadPluginsConfig() PluginsConfig {
	return PluginsConfig{
		Dirs:                 getEnvList("MODHOST_PLUGIN_DIRS", string(filepath.ListSeparator), plugins.GetDefaultPluginDirectories()),
		APIVersion:           getEnv("MODHOST_API_VERSION", plugins.CurrentAPIVersion),
		HostVersion:          getEnv("MODHOST_HOST_VERSION", "dev"),
		SuppressUpdateChecks: getEnvList("MODHOST_SUPPRESS_UPDATE_CHECKS", ",", nil),
		ParanoidWarnings:     getEnvBool("MODHOST_PARANOID_WARNINGS", false),
		RewriteEnabled:       getEnvBool("MODHOST_REWRITE_ENABLED", true),
		Watch:                getEnvBool("MODHOST_WATCH", false),
	}
}

func loadUpdatesConfig() UpdatesConfig {
	return UpdatesConfig{
		Enabled:   getEnvBool("MODHOST_UPDATES_ENABLED", false),
		ServerURL: getEnv("MODHOST_UPDATE_SERVER_URL", "https://api.modhost.dev/v3"),
		Schedule:  getEnv("MODHOST_UPDATE_SCHEDULE", "@every 6h"),
		Timeout:   getEnvDuration("MODHOST_UPDATE_TIMEOUT", 30*time.Second),
		CacheTTL:  getEnvDuration("MODHOST_UPDATE_CACHE_TTL", time.Hour),
		BatchSize: getEnvInt("MODHOST_UPDATE_BATCH_SIZE", 50),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:         getEnvBool("MODHOST_SERVER_ENABLED", true),
		Addr:            getEnv("MODHOST_SERVER_ADDR", "127.0.0.1:8087"),
		ReadTimeout:     getEnvDuration("MODHOST_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MODHOST_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("MODHOST_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        getEnv("MODHOST_LOG_LEVEL", "info"),
		LogFormat:       getEnv("MODHOST_LOG_FORMAT", "text"),
		MetricsEnabled:  getEnvBool("MODHOST_METRICS_ENABLED", true),
		OTelEnabled:     getEnvBool("MODHOST_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("MODHOST_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName: getEnv("MODHOST_OTEL_SERVICE_NAME", "modhost"),
		OTelInsecure:    getEnvBool("MODHOST_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Plugins.Dirs) == 0 {
		return errors.New("at least one plugin directory is required")
	}
	if !plugins.IsValidVersion(c.Plugins.APIVersion) {
		return fmt.Errorf("invalid API version: %q", c.Plugins.APIVersion)
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Updates.Enabled {
		u, err := url.Parse(c.Updates.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid update server URL: %q", c.Updates.ServerURL)
		}
		if _, err := cron.ParseStandard(c.Updates.Schedule); err != nil {
			return fmt.Errorf("invalid update schedule: %w", err)
		}
		if c.Updates.Timeout <= 0 {
			return errors.New("update timeout must be positive")
		}
		if c.Updates.BatchSize <= 0 {
			return errors.New("update batch size must be positive")
		}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return errors.New("server address is required when the status server is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a variable on sep, or returns a default.
func getEnvList(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
