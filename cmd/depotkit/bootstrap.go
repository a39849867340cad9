package main

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/depotkit/pkg/depot/config"
	"github.com/jamesainslie/depotkit/pkg/depot/logging"
)

// initializeLogging loads the configuration and sets up file logging.
// Verbose mode mirrors debug records to stderr.
func (a *app) initializeLogging() error {
	cfg, err := config.LoadFile(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := loggingConfig(cfg.Logging)
	if a.verbose {
		logCfg.ConsoleLevel = "debug"
	}

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}

// loggingConfig converts the config file logging section.
func loggingConfig(c config.LoggingConfig) logging.Config {
	return logging.Config{
		Level:      c.Level,
		Path:       c.Path,
		Rotation:   parseRotationConfig(c.Rotation),
		Components: c.Components,
	}
}

// parseRotationConfig converts size strings such as "10MB" to bytes.
// Empty or unparsable sizes fall back to the logging default.
func parseRotationConfig(c config.RotationConfig) logging.RotationConfig {
	rc := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Daily:      c.Daily,
	}

	if c.MaxSize != "" {
		if size, err := humanize.ParseBytes(c.MaxSize); err == nil && size > 0 {
			rc.MaxSize = int64(size)
		}
	}

	return rc
}
