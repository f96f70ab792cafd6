// Package cli implements the modhost command line.
//
// Commands:
//
//	modhost run       load every mod and serve the status API until interrupted
//	modhost check     load without running any mod and print the report
//	modhost graph     print the dependency graph (DOT or JSON)
//	modhost moddb     manage the compatibility database
//	modhost version   print version information
package cli
