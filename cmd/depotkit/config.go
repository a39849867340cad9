package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/depotkit/pkg/depot/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage depotkit configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/depotkit/config.yaml (if set)
  2. ~/.config/depotkit/config.yaml

Environment variables can override config file settings using the DEPOTKIT_ prefix:
  DEPOTKIT_OUTPUT_FORMAT=json
  DEPOTKIT_VERIFY_WORKERS=4
  DEPOTKIT_CATALOG_PATH=/srv/catalog`,
		// A broken config file must not stop config path or init.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
			cfg, err := config.LoadFile(a.cfgFile)
			if err != nil {
				printError(a.stderr, "Failed to load configuration: %v", err)
				return nil
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			Long:  `Display the effective configuration from all sources. Keys are redacted.`,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.showConfig()
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create default configuration file",
			Long:  `Create a default configuration file if one doesn't exist.`,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.ConfigPath()
				if err != nil {
					return err
				}
				if _, err := os.Stat(path); err == nil {
					a.printInfo("Config file already exists: %s", path)
					return nil
				}

				if _, err := config.WriteDefault(); err != nil {
					return fmt.Errorf("failed to create config file: %w", err)
				}
				a.printInfo("Created default config file: %s", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration file path",
			RunE: func(cmd *cobra.Command, args []string) error {
				path := a.cfgFile
				if path == "" {
					var err error
					if path, err = config.ConfigPath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(a.stdout, path)

				if _, err := os.Stat(path); os.IsNotExist(err) {
					a.printVerbose("File does not exist (will use defaults)")
				}
				return nil
			},
		},
	)

	return cmd
}

func (a *app) showConfig() error {
	if a.cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if a.cfg.File != "" {
		fmt.Fprintf(a.stdout, "# Config file: %s\n", a.cfg.File)
	} else {
		fmt.Fprintln(a.stdout, "# Config file: (using defaults, no file found)")
	}

	shown := *a.cfg
	shown.Keys = make(map[string]string, len(a.cfg.Keys))
	for depot, key := range a.cfg.Keys {
		shown.Keys[depot] = redact(key)
	}

	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(configView(&shown)); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	var overrides []string
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "DEPOTKIT_") {
			overrides = append(overrides, env)
		}
	}
	if len(overrides) > 0 {
		fmt.Fprintln(a.stdout, "\n# Environment overrides:")
		for _, env := range overrides {
			fmt.Fprintf(a.stdout, "#   %s\n", env)
		}
	}
	return nil
}

// configView maps Config to the key names used in the config file.
func configView(c *config.Config) map[string]any {
	return map[string]any{
		"output": map[string]any{"format": c.Output.Format},
		"save":   map[string]any{"keep_signature": c.Save.KeepSignature},
		"verify": map[string]any{"workers": c.Verify.Workers, "chunk_dir": c.Verify.ChunkDir},
		"catalog": map[string]any{
			"path":       c.Catalog.Path,
			"extensions": c.Catalog.Extensions,
		},
		"keys": c.Keys,
		"logging": map[string]any{
			"level": c.Logging.Level,
			"path":  c.Logging.Path,
			"rotation": map[string]any{
				"max_size":    c.Logging.Rotation.MaxSize,
				"max_age":     c.Logging.Rotation.MaxAge,
				"max_backups": c.Logging.Rotation.MaxBackups,
				"daily":       c.Logging.Rotation.Daily,
			},
			"components": c.Logging.Components,
		},
	}
}

// redact keeps the first and last four characters of a key.
func redact(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
