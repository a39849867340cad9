package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tempDir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output.Format != DefaultFormat {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, DefaultFormat)
	}
	if cfg.Save.KeepSignature {
		t.Error("Save.KeepSignature = true, want false")
	}
	if cfg.Verify.Workers != DefaultVerifyWorkers {
		t.Errorf("Verify.Workers = %d, want %d", cfg.Verify.Workers, DefaultVerifyWorkers)
	}
	if cfg.Catalog.Path != DefaultCatalogPath() {
		t.Errorf("Catalog.Path = %q, want %q", cfg.Catalog.Path, DefaultCatalogPath())
	}
	if len(cfg.Catalog.Extensions) != 1 || cfg.Catalog.Extensions[0] != ".manifest" {
		t.Errorf("Catalog.Extensions = %v, want [.manifest]", cfg.Catalog.Extensions)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Rotation.MaxSize != "10MB" {
		t.Errorf("Logging.Rotation.MaxSize = %q, want %q", cfg.Logging.Rotation.MaxSize, "10MB")
	}
	if cfg.Logging.Components["manifest"] != "info" {
		t.Errorf("Logging.Components[manifest] = %q, want %q", cfg.Logging.Components["manifest"], "info")
	}
	if len(cfg.Keys) != 0 {
		t.Errorf("Keys = %v, want empty", cfg.Keys)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := isolate(t)
	writeConfig(t, filepath.Join(tempDir, ".config", "depotkit"), `
output:
  format: json
save:
  keep_signature: true
verify:
  workers: 2
  chunk_dir: ~/chunks
catalog:
  path: /srv/catalog
  extensions: [.manifest, .mfst]
keys:
  "731": "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
logging:
  level: debug
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, "json")
	}
	if !cfg.Save.KeepSignature {
		t.Error("Save.KeepSignature = false, want true")
	}
	if cfg.Verify.Workers != 2 {
		t.Errorf("Verify.Workers = %d, want %d", cfg.Verify.Workers, 2)
	}
	if want := filepath.Join(tempDir, "chunks"); cfg.Verify.ChunkDir != want {
		t.Errorf("Verify.ChunkDir = %q, want %q", cfg.Verify.ChunkDir, want)
	}
	if cfg.Catalog.Path != "/srv/catalog" {
		t.Errorf("Catalog.Path = %q, want %q", cfg.Catalog.Path, "/srv/catalog")
	}
	if len(cfg.Catalog.Extensions) != 2 {
		t.Errorf("len(Catalog.Extensions) = %d, want 2", len(cfg.Catalog.Extensions))
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	key, err := cfg.DepotKey(731)
	if err != nil {
		t.Fatalf("DepotKey(731) error = %v", err)
	}
	if len(key) != 32 || key[0] != 0x00 || key[31] != 0x1f {
		t.Errorf("DepotKey(731) = %x", key)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, filepath.Join(tempDir, "xdg-config", "depotkit"), "output:\n  format: yaml\n")

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg-config"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Format != "yaml" {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, "yaml")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("DEPOTKIT_OUTPUT_FORMAT", "csv")
	t.Setenv("DEPOTKIT_VERIFY_WORKERS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, "csv")
	}
	if cfg.Verify.Workers != 3 {
		t.Errorf("Verify.Workers = %d, want %d", cfg.Verify.Workers, 3)
	}
}

func TestLoadFile(t *testing.T) {
	tempDir := isolate(t)
	path := writeConfig(t, filepath.Join(tempDir, "elsewhere"), "output:\n  format: tsv\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Output.Format != "tsv" {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, "tsv")
	}
	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}

	if _, err := LoadFile(filepath.Join(tempDir, "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) error = nil, want error")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	tempDir := isolate(t)
	writeConfig(t, filepath.Join(tempDir, ".config", "depotkit"), "output: [unterminated\n")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

func TestDepotKey(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	cfg := &Config{Keys: map[string]string{
		"1": valid,
		"2": "zz",
		"3": "abcd",
		"4": "",
	}}

	tests := []struct {
		name    string
		depot   uint32
		wantErr error
	}{
		{"valid", 1, nil},
		{"not hex", 2, ErrInvalidKey},
		{"too short", 3, ErrInvalidKey},
		{"empty", 4, ErrNoKey},
		{"unknown depot", 5, ErrNoKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := cfg.DepotKey(tt.depot)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("DepotKey(%d) error = %v", tt.depot, err)
				}
				if len(key) != 32 {
					t.Errorf("len(key) = %d, want 32", len(key))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DepotKey(%d) error = %v, want %v", tt.depot, err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != "/custom/config/depotkit" {
			t.Errorf("ConfigDir() = %q, want %q", dir, "/custom/config/depotkit")
		}
	})

	t.Run("uses HOME/.config when XDG_CONFIG_HOME not set", func(t *testing.T) {
		tempDir := isolate(t)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if want := filepath.Join(tempDir, ".config", "depotkit"); dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	t.Run("creates a loadable default config", func(t *testing.T) {
		tempDir := isolate(t)

		path, err := WriteDefault()
		if err != nil {
			t.Fatalf("WriteDefault() error = %v", err)
		}
		if want := filepath.Join(tempDir, ".config", "depotkit", "config.yaml"); path != want {
			t.Errorf("WriteDefault() = %q, want %q", path, want)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() after WriteDefault error = %v", err)
		}
		if cfg.Output.Format != DefaultFormat {
			t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, DefaultFormat)
		}
		if cfg.Verify.Workers != DefaultVerifyWorkers {
			t.Errorf("Verify.Workers = %d, want %d", cfg.Verify.Workers, DefaultVerifyWorkers)
		}
	})

	t.Run("does not overwrite existing config", func(t *testing.T) {
		tempDir := isolate(t)
		existing := "output:\n  format: json\n"
		path := writeConfig(t, filepath.Join(tempDir, ".config", "depotkit"), existing)

		if _, err := WriteDefault(); err != nil {
			t.Fatalf("WriteDefault() error = %v", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read config file: %v", err)
		}
		if string(content) != existing {
			t.Errorf("config file was overwritten: got %q, want %q", string(content), existing)
		}
	})
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"expands tilde", "~/depots", filepath.Join(homeDir, "depots")},
		{"leaves absolute path unchanged", "/srv/depots", "/srv/depots"},
		{"leaves relative path unchanged", "depots", "depots"},
		{"handles tilde only", "~", homeDir},
		{"leaves empty path unchanged", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	if filepath.Base(DefaultCatalogPath()) != "catalog" {
		t.Errorf("DefaultCatalogPath() = %q", DefaultCatalogPath())
	}
	if filepath.Base(filepath.Dir(DefaultCatalogPath())) != "depotkit" {
		t.Errorf("DefaultCatalogPath() = %q, want under depotkit", DefaultCatalogPath())
	}
	if filepath.Base(DefaultLogPath()) != "depotkit.log" {
		t.Errorf("DefaultLogPath() = %q", DefaultLogPath())
	}
}
