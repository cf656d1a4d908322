package config

const (
	HCType        = "Content-Type"
	HCacheControl = "Cache-Control"
	HUserID       = "X-User-ID"

	CTypeJSON        = "application/json"
	CTypeEventStream = "text/event-stream"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
	HTTPErrTooManyRequests  = "Too many requests"
)

// DefaultConfigPath is read when PANTRY_CONFIG is unset.
const DefaultConfigPath = "config.yaml"
