package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != "8080" || cfg.StoreDriver != "memory" || !cfg.Seed {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if cfg.RequestTimeout() != 30*time.Second {
			t.Errorf("unexpected timeout: %s", cfg.RequestTimeout())
		}
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.StoreDriver != "memory" {
			t.Errorf("expected memory driver, got %s", cfg.StoreDriver)
		}
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := []byte("port: \"9090\"\nseed: false\nauthorized_signers:\n  - aaa\n  - bbb\n")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != "9090" || cfg.Seed {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if len(cfg.AuthorizedSigners) != 2 || cfg.AuthorizedSigners[0] != "aaa" {
			t.Errorf("unexpected signers: %v", cfg.AuthorizedSigners)
		}
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("COVERGATE_PORT", "7070")
		t.Setenv("COVERGATE_AUTHORIZED_SIGNERS", "xxx, yyy,")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != "7070" {
			t.Errorf("expected env port 7070, got %s", cfg.Port)
		}
		if len(cfg.AuthorizedSigners) != 2 || cfg.AuthorizedSigners[1] != "yyy" {
			t.Errorf("unexpected signers: %v", cfg.AuthorizedSigners)
		}
	})

	t.Run("unknown driver is rejected", func(t *testing.T) {
		t.Setenv("COVERGATE_STORE_DRIVER", "sqlite")
		if _, err := Load(""); err == nil {
			t.Error("expected error for unknown driver")
		}
	})

	t.Run("postgres driver requires a DSN", func(t *testing.T) {
		t.Setenv("COVERGATE_STORE_DRIVER", "postgres")
		if _, err := Load(""); err == nil {
			t.Error("expected error for missing DSN")
		}
		t.Setenv("COVERGATE_PG_DSN", "postgres://localhost/covergate")
		if _, err := Load(""); err != nil {
			t.Errorf("load with DSN: %v", err)
		}
	})
}
