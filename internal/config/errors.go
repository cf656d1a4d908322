package config

import "errors"

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	// Config errors
	ErrReadConfigFmt  = "failed to read config file: %w"
	ErrParseConfigFmt = "failed to parse config file: %w"

	// Storage errors
	ErrOpenStorageFmt = "failed to open draft storage: %w"
	ErrOpenBackupFmt  = "failed to open local backup store: %w"

	// Shutdown errors
	ErrFlushSessions = "Error flushing editor sessions"
)

const (
	EnvS3AccessKeyID     = "S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "S3_SECRET_ACCESS_KEY"
	EnvRemoteURL         = "PANTRY_REMOTE_URL"
	EnvLogLevel          = "PANTRY_LOG_LEVEL"
	EnvConfigPath        = "PANTRY_CONFIG"
)
