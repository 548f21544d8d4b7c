package cliconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("ARMORY_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with no file: %v", err)
	}
	if cfg.Registry != "" {
		t.Errorf("fresh config registry = %q, want empty", cfg.Registry)
	}

	cfg.Registry = "https://pkg.example.com"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Registry != "https://pkg.example.com" {
		t.Errorf("loaded registry = %q", loaded.Registry)
	}
}

func TestResolveRegistryPriority(t *testing.T) {
	cfg := &Config{Registry: "https://configured.example.com"}
	if got := cfg.ResolveRegistry("https://flag.example.com"); got != "https://flag.example.com" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := cfg.ResolveRegistry(""); got != "https://configured.example.com" {
		t.Errorf("config should win over default, got %q", got)
	}
	if got := (&Config{}).ResolveRegistry(""); got != DefaultRegistry {
		t.Errorf("default = %q, want %q", got, DefaultRegistry)
	}
}

func TestTokenKeyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv("ARMORY_CONFIG_DIR", t.TempDir())

	const registry = "https://pkg.example.com"
	if err := StoreToken(registry, "secret"); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}

	token, err := LoadToken(registry)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if token != "secret" {
		t.Errorf("token = %q", token)
	}

	// The keyring path must not touch the fallback file.
	path, _ := CredentialsPath()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("credentials file written despite working keyring: %v", err)
	}

	if err := DeleteToken(registry); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := LoadToken(registry); !errors.Is(err, ErrNoToken) {
		t.Errorf("after delete err = %v, want ErrNoToken", err)
	}
}

func TestTokenFileFallback(t *testing.T) {
	keyring.MockInitWithError(keyring.ErrUnsupportedPlatform)
	dir := t.TempDir()
	t.Setenv("ARMORY_CONFIG_DIR", dir)

	const registry = "https://pkg.example.com"
	if err := StoreToken(registry, "secret"); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}

	path := filepath.Join(dir, "credentials.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("credentials file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials file mode = %o, want 0600", perm)
	}

	token, err := LoadToken(registry)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if token != "secret" {
		t.Errorf("token = %q", token)
	}

	if err := DeleteToken(registry); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := LoadToken(registry); !errors.Is(err, ErrNoToken) {
		t.Errorf("after delete err = %v, want ErrNoToken", err)
	}
}

func TestLoadTokenMissing(t *testing.T) {
	keyring.MockInit()
	t.Setenv("ARMORY_CONFIG_DIR", t.TempDir())

	if _, err := LoadToken("https://nowhere.example.com"); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}
