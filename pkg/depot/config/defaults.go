// Package config provides configuration management for depotkit.
package config

// Default configuration values for depotkit.
const (
	// DefaultFormat is the output format used by listing commands.
	DefaultFormat = "pretty"

	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/depotkit"

	// DefaultVerifyWorkers is the number of files checked concurrently by verify.
	DefaultVerifyWorkers = 8

	// DefaultLogLevel is the default log file level.
	DefaultLogLevel = "info"
)

// DefaultExtensions lists the file extensions indexed by the catalog.
var DefaultExtensions = []string{".manifest"}
