// Package config provides host configuration from environment variables and
// an optional YAML file.
//
// # Overview
//
// Defaults come first, MODHOST_* variables override them, and the file named
// by MODHOST_CONFIG overrides both. Validate runs last.
//
// # Configuration Structure
//
// Plugin settings:
//
//	MODHOST_PLUGIN_DIRS="/srv/mods:./mods"   # OS path-list separator
//	MODHOST_API_VERSION="1.2.0"
//	MODHOST_SUPPRESS_UPDATE_CHECKS="alice.Core,bob.Tools"
//	MODHOST_PARANOID_WARNINGS="true"
//	MODHOST_REWRITE_ENABLED="true"
//	MODHOST_WATCH="false"
//	MODHOST_MODDB_PATH="/var/lib/modhost/moddb.sqlite"
//
// Update checks:
//
//	MODHOST_UPDATES_ENABLED="true"
//	MODHOST_UPDATE_SERVER_URL="https://api.modhost.dev/v3"
//	MODHOST_UPDATE_SCHEDULE="@every 6h"
//	MODHOST_UPDATE_TIMEOUT="30s"
//
// Status server and observability:
//
//	MODHOST_SERVER_ADDR="127.0.0.1:8087"
//	MODHOST_LOG_LEVEL="info"  # debug, info, warn, error
//	MODHOST_METRICS_ENABLED="true"
//	MODHOST_OTEL_ENABLED="true"
//	MODHOST_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings in YAML:
//
//	plugins:
//	  dirs: [/srv/mods]
//	  paranoid_warnings: true
//	updates:
//	  enabled: true
//	  schedule: "0 */6 * * *"
//	observability:
//	  log_level: debug
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Plugin dirs: %v\n", cfg.Plugins.Dirs)
//
// # Related Packages
//
//   - pkg/cli: builds the host from this configuration
//   - pkg/observability: uses observability configuration
package config
