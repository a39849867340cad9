package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func countLogFiles(t *testing.T, dir, prefix string) int {
	t.Helper()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	n := 0
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), ".log") {
			n++
		}
	}
	return n
}

func TestRotationBySize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "size.log"), RotationConfig{MaxSize: 100})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 5; i++ {
		if _, err := w.Write([]byte(strings.Repeat("x", 60) + "\n")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := countLogFiles(t, dir, "size"); got != 5 {
		t.Errorf("log files = %d, want 5 (1 active + 4 rotated)", got)
	}
}

func TestRotationDaily(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "daily.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 1 << 20, Daily: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	day2 := day1.Add(2 * time.Minute)
	w.now = func() time.Time { return day1 }
	w.lastRotate = day1

	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	w.now = func() time.Time { return day2 }
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rotated, err := os.ReadFile(backupName(path, day2))
	if err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
	if string(rotated) != "first\n" {
		t.Errorf("rotated content = %q, want %q", rotated, "first\n")
	}

	active, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("active file missing: %v", err)
	}
	if string(active) != "second\n" {
		t.Errorf("active content = %q, want %q", active, "second\n")
	}
}

func TestPruneBackups(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "depotkit.log")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := os.WriteFile(path, []byte("active"), 0o644); err != nil {
		t.Fatal(err)
	}
	ages := []time.Duration{1 * time.Hour, 2 * time.Hour, 3 * time.Hour, 40 * 24 * time.Hour}
	for _, age := range ages {
		name := backupName(path, now.Add(-age))
		if err := os.WriteFile(name, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(name, now.Add(-age), now.Add(-age)); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files must survive.
	if err := os.WriteFile(filepath.Join(dir, "other.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	pruneBackups(path, RotationConfig{MaxBackups: 2, MaxAge: 30}, now)

	if got := countLogFiles(t, dir, "depotkit.2026-"); got != 2 {
		t.Errorf("remaining backups = %d, want 2", got)
	}
	if _, err := os.Stat(backupName(path, now.Add(-time.Hour))); err != nil {
		t.Errorf("newest backup was removed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("active log was removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.log")); err != nil {
		t.Errorf("unrelated file was removed: %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	t.Parallel()

	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("Write() after Close() succeeded, want error")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
