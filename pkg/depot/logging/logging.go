// Package logging provides component loggers for depotkit. Every package
// obtains its logger with Get; output is discarded until Init is called,
// so library users who never call Init get a silent codec.
//
// Basic usage:
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("manifest")
//	logger.Info("manifest parsed", "depot", 731, "files", 42)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel mirrors records at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string
}

// Logger is a component logger writing to the log file and, optionally,
// to stderr.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.file.Debug(msg, args...)
	if l.console != nil {
		l.console.Debug(msg, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.file.Info(msg, args...)
	if l.console != nil {
		l.console.Info(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.file.Warn(msg, args...)
	if l.console != nil {
		l.console.Warn(msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.file.Error(msg, args...)
	if l.console != nil {
		l.console.Error(msg, args...)
	}
}

// With returns a logger carrying additional key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	child := &Logger{
		file:      l.file.With(args...),
		component: l.component,
	}
	if l.console != nil {
		child.console = l.console.With(args...)
	}
	return child
}

// Component returns the component name the logger was created for.
func (l *Logger) Component() string {
	return l.component
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level

	consoleEnabled bool
	consoleLevel   Level

	// loggers hands out stable pointers; Init rewires them in place so
	// package-level loggers created before Init start writing afterwards.
	loggers map[string]*Logger
}

var global = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
}

// Init initializes the logging system. Calling it again replaces the
// previous configuration.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	consoleEnabled := false
	consoleLevel := LevelInfo
	if cfg.ConsoleLevel != "" {
		consoleLevel, err = ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		consoleEnabled = true
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}

	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	if global.writer != nil {
		if err := global.writer.Close(); err != nil {
			_ = writer.Close()
			return fmt.Errorf("closing existing writer: %w", err)
		}
	}

	global.writer = writer
	global.level = level
	global.components = components
	global.consoleEnabled = consoleEnabled
	global.consoleLevel = consoleLevel
	global.initialized = true

	for component, logger := range global.loggers {
		*logger = *global.build(component)
	}

	return nil
}

// Get returns the logger for a component. The same pointer is returned for
// every call with the same name.
func Get(component string) *Logger {
	global.mu.RLock()
	logger, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return logger
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if logger, ok := global.loggers[component]; ok {
		return logger
	}

	logger = global.build(component)
	global.loggers[component] = logger
	return logger
}

// build creates a logger for component. Must be called with mu held.
func (s *state) build(component string) *Logger {
	level := s.level
	if override, ok := s.components[component]; ok {
		level = override
	}

	if !s.initialized {
		return &Logger{
			file: log.NewWithOptions(io.Discard, log.Options{
				Level:  level.charm(),
				Prefix: component,
			}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(s.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}

	if s.consoleEnabled {
		logger.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           s.consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}

	return logger
}

// Close flushes and closes the log file. Loggers go back to discarding.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	var closeErr error
	if global.writer != nil {
		if err := global.writer.Close(); err != nil {
			closeErr = fmt.Errorf("closing log writer: %w", err)
		}
		global.writer = nil
	}

	global.initialized = false
	global.consoleEnabled = false
	global.components = make(map[string]Level)
	for component, logger := range global.loggers {
		*logger = *global.build(component)
	}

	return closeErr
}

// DefaultLogPath returns $XDG_STATE_HOME/depotkit/depotkit.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "depotkit", "depotkit.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
