package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "depotkit"

var (
	// ErrNoKey is returned when no filename key is configured for a depot.
	ErrNoKey = errors.New("no key configured for depot")

	// ErrInvalidKey is returned when a configured key is not 32 bytes of hex.
	ErrInvalidKey = errors.New("invalid depot key")
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// CatalogConfig configures the manifest catalog.
type CatalogConfig struct {
	Path       string   `mapstructure:"path"`
	Extensions []string `mapstructure:"extensions"`
}

// Config represents the application configuration.
type Config struct {
	Output struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`
	Save struct {
		KeepSignature bool `mapstructure:"keep_signature"`
	} `mapstructure:"save"`
	Verify struct {
		Workers  int    `mapstructure:"workers"`
		ChunkDir string `mapstructure:"chunk_dir"`
	} `mapstructure:"verify"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Keys maps depot ids to hex-encoded filename keys.
	Keys map[string]string `mapstructure:"keys"`

	// File is the config file that was read, empty when only defaults
	// and environment were used.
	File string `mapstructure:"-" yaml:"-"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/depotkit/config.yaml
//   - $HOME/.config/depotkit/config.yaml
//
// Environment variables are prefixed with DEPOTKIT_ (e.g., DEPOTKIT_OUTPUT_FORMAT).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations; a non-empty path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", appName))
	}

	v.SetEnvPrefix("DEPOTKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Catalog.Path, err = ExpandPath(cfg.Catalog.Path); err != nil {
		return nil, err
	}
	if cfg.Verify.ChunkDir, err = ExpandPath(cfg.Verify.ChunkDir); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("save.keep_signature", false)
	v.SetDefault("verify.workers", DefaultVerifyWorkers)
	v.SetDefault("verify.chunk_dir", "")
	v.SetDefault("catalog.path", DefaultCatalogPath())
	v.SetDefault("catalog.extensions", DefaultExtensions)
	v.SetDefault("keys", map[string]string{})

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"manifest":   "info",
		"chunkstore": "info",
		"catalog":    "info",
	})
}

// DepotKey returns the filename key configured for depotID.
func (c *Config) DepotKey(depotID uint32) ([]byte, error) {
	s, ok := c.Keys[strconv.FormatUint(uint64(depotID), 10)]
	if !ok || s == "" {
		return nil, fmt.Errorf("%w %d", ErrNoKey, depotID)
	}
	return ParseKey(s)
}

// ParseKey decodes a hex AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32", ErrInvalidKey, len(key))
	}
	return key, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# depotkit configuration

# Output format for info and files: pretty, plain, json, jsonl, yaml,
# tsv, csv, markdown, paths, null, template
output:
  format: %s

# Keep the signature section when saving (default strips it)
save:
  keep_signature: false

# Chunk verification
verify:
  workers: %d
  # Directory holding chunk files named by hex SHA-1
  chunk_dir: ""

# Manifest catalog
catalog:
  path: %s
  extensions:
    - .manifest

# Filename keys by depot id, as 64 hex characters
keys: {}
#  "731": "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/depotkit/depotkit.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    manifest: info
    chunkstore: info
    catalog: info
`, DefaultFormat, DefaultVerifyWorkers, DefaultCatalogPath(), DefaultLogLevel)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/depotkit/ for the catalog database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns $XDG_STATE_HOME/depotkit/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultCatalogPath returns the default catalog database directory.
func DefaultCatalogPath() string {
	return filepath.Join(DataDir(), "catalog")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "depotkit.log")
}
