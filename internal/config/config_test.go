package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config content: %v", err)
	}
	return path
}

func TestApplyDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	if config.Server.Port != "12600" {
		t.Errorf("Expected port '12600', got %q", config.Server.Port)
	}
	if config.Storage.Backend != "sqlite" {
		t.Errorf("Expected sqlite backend, got %q", config.Storage.Backend)
	}
	if config.Autosave.Debounce.Std() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s debounce, got %v", config.Autosave.Debounce)
	}
	if config.Autosave.MinSaveInterval.Std() != 5*time.Second {
		t.Errorf("Expected 5s min save interval, got %v", config.Autosave.MinSaveInterval)
	}
	if config.Autosave.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", config.Autosave.MaxRetries)
	}
	if !config.Autosave.BackupToLocal {
		t.Error("Expected local backup to be enabled by default")
	}
	if config.RateLimit.RPS != 10 {
		t.Errorf("Expected 10 rps, got %v", config.RateLimit.RPS)
	}
	if config.Remote.URL != "" {
		t.Errorf("Expected no remote by default, got %q", config.Remote.URL)
	}
}

func TestSliceDefaults(t *testing.T) {
	type TestStruct struct {
		Items []string `default:" item1 , item2 "`
		Kept  []string `default:"a,b"`
	}

	test := &TestStruct{Kept: []string{"existing"}}
	applyDefaults(test)

	if !reflect.DeepEqual(test.Items, []string{"item1", "item2"}) {
		t.Errorf("Expected trimmed items, got %v", test.Items)
	}
	if !reflect.DeepEqual(test.Kept, []string{"existing"}) {
		t.Errorf("Expected existing items to be preserved, got %v", test.Kept)
	}
}

func TestLoadConfig(t *testing.T) {
	SetLogger(zerolog.Nop())

	t.Run("Missing file uses defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("Expected no error for missing config file, got %v", err)
		}
		if !reflect.DeepEqual(cfg, Default()) {
			t.Error("Expected defaults for missing config file")
		}
	})

	t.Run("YAML overrides", func(t *testing.T) {
		path := writeTempConfig(t, "config.yaml", `
server:
  port: "9000"
autosave:
  debounce: 750ms
  min_save_interval: 2000
  backup_to_local: false
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Server.Port != "9000" {
			t.Errorf("Expected port 9000, got %q", cfg.Server.Port)
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("Expected default host to survive, got %q", cfg.Server.Host)
		}
		if cfg.Autosave.Debounce.Std() != 750*time.Millisecond {
			t.Errorf("Expected 750ms debounce, got %v", cfg.Autosave.Debounce)
		}
		if cfg.Autosave.MinSaveInterval.Std() != 2*time.Second {
			t.Errorf("Expected bare integer read as milliseconds, got %v", cfg.Autosave.MinSaveInterval)
		}
		if cfg.Autosave.BackupToLocal {
			t.Error("Expected backup_to_local to be disabled")
		}
	})

	t.Run("TOML overrides", func(t *testing.T) {
		cfg, err := LoadConfig("testdata/override.toml")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Server.Port != "8080" || cfg.Storage.Backend != "memory" {
			t.Errorf("Unexpected server/storage: %+v %+v", cfg.Server, cfg.Storage)
		}
		if cfg.Autosave.Debounce.Std() != 250*time.Millisecond || cfg.Autosave.MaxRetries != 5 {
			t.Errorf("Unexpected autosave: %+v", cfg.Autosave)
		}
	})

	t.Run("Invalid backend", func(t *testing.T) {
		_, err := LoadConfig("testdata/invalid_backend.yaml")
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		path := writeTempConfig(t, "broken.yaml", "server: [unterminated")
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv(EnvRemoteURL, "http://drafts.internal:12600")
		t.Setenv(EnvS3AccessKeyID, "key")
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Remote.URL != "http://drafts.internal:12600" {
			t.Errorf("Expected remote URL from env, got %q", cfg.Remote.URL)
		}
		if cfg.Storage.S3.AccessKeyID != "key" {
			t.Errorf("Expected S3 key from env, got %q", cfg.Storage.S3.AccessKeyID)
		}
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(*Config) {}, false},
		{"S3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"S3 with bucket", func(c *Config) { c.Storage.Backend = "s3"; c.Storage.S3.Bucket = "drafts" }, false},
		{"Unknown backup backend", func(c *Config) { c.Backup.Backend = "redis" }, true},
		{"Unknown compression", func(c *Config) { c.Storage.Compression = "lz4" }, true},
		{"Gzip compression", func(c *Config) { c.Storage.Compression = "gzip" }, false},
		{"Zero retries", func(c *Config) { c.Autosave.MaxRetries = 0 }, true},
		{"Negative debounce", func(c *Config) { c.Autosave.Debounce = Duration(-time.Second) }, true},
		{"Max backoff below base", func(c *Config) { c.Autosave.MaxBackoff = Duration(time.Millisecond) }, true},
		{"Remote without probe interval", func(c *Config) { c.Remote.URL = "http://store"; c.Remote.ProbeInterval = 0 }, true},
		{"Negative burst", func(c *Config) { c.RateLimit.Burst = -1 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m")); err != nil || d.Std() != 2*time.Minute {
		t.Errorf("Expected 2m, got %v (%v)", d, err)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("Expected error for invalid duration")
	}

	text, _ := Duration(1500 * time.Millisecond).MarshalText()
	if string(text) != "1.5s" {
		t.Errorf("Expected '1.5s', got %q", text)
	}
}
