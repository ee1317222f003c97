package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Server.APIURL = "https://chat.example.com/api"
	cfg.Client.InitTimeout = Duration{3 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Server.APIURL != "https://chat.example.com/api" {
		t.Errorf("APIURL = %q", loaded.Server.APIURL)
	}
	if loaded.Client.InitTimeout.Duration != 3*time.Second {
		t.Errorf("InitTimeout = %v, want 3s", loaded.Client.InitTimeout)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\napi_url = \"https://x/api\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIURL != "https://x/api" {
		t.Errorf("APIURL = %q", cfg.Server.APIURL)
	}
	if cfg.Client.InitAttempts != 3 {
		t.Errorf("InitAttempts = %d, want default 3", cfg.Client.InitAttempts)
	}
	if cfg.Client.MaxImageBytes != 5<<20 {
		t.Errorf("MaxImageBytes = %d, want default", cfg.Client.MaxImageBytes)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	t.Setenv("CHATLINE_API_URL", "https://env.example.com/api")
	t.Setenv("CHATLINE_INIT_ATTEMPTS", "5")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIURL != "https://env.example.com/api" {
		t.Errorf("APIURL = %q, want env override", cfg.Server.APIURL)
	}
	if cfg.Client.InitAttempts != 5 {
		t.Errorf("InitAttempts = %d, want 5", cfg.Client.InitAttempts)
	}
}

func TestBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[client]\ninit_timeout = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for bad duration")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
