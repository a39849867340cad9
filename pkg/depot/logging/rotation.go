package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the maximum size in bytes before rotation.
	// Zero uses the default of 10MB.
	MaxSize int64

	// MaxAge is the maximum number of days to retain rotated files.
	// Zero disables age-based cleanup.
	MaxAge int

	// MaxBackups is the maximum number of rotated files to keep.
	// Zero keeps all of them (subject to MaxAge).
	MaxBackups int

	// Daily rotates the log file when the calendar day changes.
	Daily bool
}

// DefaultRotationConfig returns sensible defaults for rotation.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// backupTimeFormat is embedded in rotated file names:
// depotkit.2026-01-20-150405.log
const backupTimeFormat = "2006-01-02-150405"

// RotatingWriter is an io.WriteCloser that rotates its file by size and
// by day. Writes take an advisory flock so several depotkit processes can
// share one log file.
type RotatingWriter struct {
	path       string
	cfg        RotationConfig
	mu         sync.Mutex
	file       *os.File
	size       int64
	lastRotate time.Time
	now        func() time.Time
}

// NewRotatingWriter opens (or creates) the log file at path, creating
// parent directories as needed.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{
		path: path,
		cfg:  cfg,
		now:  time.Now,
	}
	if err := w.open(); err != nil {
		return nil, err
	}

	pruneBackups(w.path, w.cfg, w.now())
	return w, nil
}

// Write appends p to the log file, rotating first when needed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.shouldRotate(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil

	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	w.lastRotate = info.ModTime()
	return nil
}

func (w *RotatingWriter) shouldRotate(writeSize int64) bool {
	if w.size > 0 && w.size+writeSize > w.cfg.MaxSize {
		return true
	}

	if w.cfg.Daily && w.size > 0 {
		now := w.now()
		if now.YearDay() != w.lastRotate.YearDay() || now.Year() != w.lastRotate.Year() {
			return true
		}
	}

	return false
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	now := w.now()
	if err := os.Rename(w.path, backupName(w.path, now)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}

	if err := w.open(); err != nil {
		return err
	}
	w.lastRotate = now

	pruneBackups(w.path, w.cfg, now)
	return nil
}

// backupName returns the rotated name for path at time t.
func backupName(path string, t time.Time) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%s%s", strings.TrimSuffix(path, ext), t.Format(backupTimeFormat), ext)
}

// pruneBackups removes rotated files beyond MaxBackups or older than MaxAge.
// Errors are ignored; cleanup is best effort.
func pruneBackups(path string, cfg RotationConfig, now time.Time) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var backups []backup

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == base {
			continue
		}
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.After(backups[j].modTime)
	})

	maxAge := time.Duration(cfg.MaxAge) * 24 * time.Hour
	for i, b := range backups {
		tooMany := cfg.MaxBackups > 0 && i >= cfg.MaxBackups
		tooOld := cfg.MaxAge > 0 && now.Sub(b.modTime) > maxAge
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}
