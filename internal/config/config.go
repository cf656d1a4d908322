package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Backup    BackupConfig    `yaml:"backup" toml:"backup"`
	Autosave  AutosaveConfig  `yaml:"autosave" toml:"autosave"`
	Remote    RemoteConfig    `yaml:"remote" toml:"remote"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" toml:"port" default:"12600"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" default:"info"`
	Format string `yaml:"format" toml:"format" default:"console"`
}

type StorageConfig struct {
	// Backend is one of sqlite, s3, fs or memory.
	Backend     string   `yaml:"backend" toml:"backend" default:"sqlite"`
	SQLitePath  string   `yaml:"sqlite_path" toml:"sqlite_path" default:"./drafts.db"`
	FSDir       string   `yaml:"fs_dir" toml:"fs_dir" default:"./data/drafts"`
	Compression string   `yaml:"compression" toml:"compression" default:"zstd"`
	S3          S3Config `yaml:"s3" toml:"s3"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket" toml:"bucket" default:""`
	Endpoint string `yaml:"endpoint" toml:"endpoint" default:""`
	Region   string `yaml:"region" toml:"region" default:"auto"`
	Prefix   string `yaml:"prefix" toml:"prefix" default:"drafts/"`

	// Credentials come from the environment only.
	AccessKeyID     string `yaml:"-" toml:"-"`
	AccessKeySecret string `yaml:"-" toml:"-"`
}

type BackupConfig struct {
	// Backend is fs or memory.
	Backend string `yaml:"backend" toml:"backend" default:"fs"`
	Dir     string `yaml:"dir" toml:"dir" default:"./data/backups"`
}

type AutosaveConfig struct {
	Debounce        Duration `yaml:"debounce" toml:"debounce" default:"1500ms"`
	MinSaveInterval Duration `yaml:"min_save_interval" toml:"min_save_interval" default:"5s"`
	MaxRetries      int      `yaml:"max_retries" toml:"max_retries" default:"3"`
	BackupToLocal   bool     `yaml:"backup_to_local" toml:"backup_to_local" default:"true"`
	BaseBackoff     Duration `yaml:"base_backoff" toml:"base_backoff" default:"1s"`
	MaxBackoff      Duration `yaml:"max_backoff" toml:"max_backoff" default:"30s"`
	CommitTimeout   Duration `yaml:"commit_timeout" toml:"commit_timeout" default:"15s"`
}

// RemoteConfig points the editor sessions at a remote draft store. When URL is
// empty the sessions use the in-process storage backend.
type RemoteConfig struct {
	URL           string   `yaml:"url" toml:"url" default:""`
	Timeout       Duration `yaml:"timeout" toml:"timeout" default:"10s"`
	ProbeInterval Duration `yaml:"probe_interval" toml:"probe_interval" default:"5s"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" toml:"rps" default:"10"`
	Burst int     `yaml:"burst" toml:"burst" default:"20"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML or TOML file (by extension) on top of the defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf(ErrReadConfigFmt, err)
		}
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if _, err := toml.Decode(string(data), config); err != nil {
				return nil, fmt.Errorf(ErrParseConfigFmt, err)
			}
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf(ErrParseConfigFmt, err)
			}
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv(EnvS3AccessKeyID); v != "" {
		config.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv(EnvS3SecretAccessKey); v != "" {
		config.Storage.S3.AccessKeySecret = v
	}
	if v := os.Getenv(EnvRemoteURL); v != "" {
		config.Remote.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "s3", "fs", "memory":
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	switch c.Storage.Compression {
	case "", "zstd", "gzip", "none":
	default:
		return fmt.Errorf("%w: storage.compression %q", ErrInvalidConfig, c.Storage.Compression)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("%w: storage.s3.bucket is required for the s3 backend", ErrInvalidConfig)
	}
	switch c.Backup.Backend {
	case "fs", "memory":
	default:
		return fmt.Errorf("%w: backup.backend %q", ErrInvalidConfig, c.Backup.Backend)
	}

	a := c.Autosave
	if a.MaxRetries < 1 {
		return fmt.Errorf("%w: autosave.max_retries must be at least 1", ErrInvalidConfig)
	}
	if a.Debounce < 0 || a.MinSaveInterval < 0 || a.BaseBackoff < 0 {
		return fmt.Errorf("%w: autosave durations must not be negative", ErrInvalidConfig)
	}
	if a.MaxBackoff < a.BaseBackoff {
		return fmt.Errorf("%w: autosave.max_backoff is smaller than base_backoff", ErrInvalidConfig)
	}
	if c.Remote.URL != "" && (c.Remote.ProbeInterval <= 0 || c.Remote.Timeout <= 0) {
		return fmt.Errorf("%w: remote.probe_interval and remote.timeout must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: rate_limit values must not be negative", ErrInvalidConfig)
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			var d Duration
			if err := d.UnmarshalText([]byte(defaultValue)); err == nil {
				field.Set(reflect.ValueOf(d))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}

// Duration is a time.Duration written as a Go duration string ("1500ms") in
// config files. Bare integers are read as milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
