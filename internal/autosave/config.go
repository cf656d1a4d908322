package autosave

import (
	"time"

	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/persist"
)

// Config is the autosave policy of a session. It is not changed after the
// session starts.
type Config struct {
	// Debounce is the quiet period after the last edit before a commit.
	Debounce time.Duration
	// MinSaveInterval is the minimum time between the starts of two commits.
	MinSaveInterval time.Duration

	MaxRetries    int
	BackupToLocal bool
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration

	// CommitTimeout bounds a single commit attempt. Zero means no bound.
	CommitTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:        1500 * time.Millisecond,
		MinSaveInterval: 5 * time.Second,
		MaxRetries:      3,
		BackupToLocal:   true,
		BaseBackoff:     time.Second,
		MaxBackoff:      30 * time.Second,
		CommitTimeout:   15 * time.Second,
	}
}

// FromSettings converts the autosave section of the config file.
func FromSettings(a config.AutosaveConfig) Config {
	return Config{
		Debounce:        a.Debounce.Std(),
		MinSaveInterval: a.MinSaveInterval.Std(),
		MaxRetries:      a.MaxRetries,
		BackupToLocal:   a.BackupToLocal,
		BaseBackoff:     a.BaseBackoff.Std(),
		MaxBackoff:      a.MaxBackoff.Std(),
		CommitTimeout:   a.CommitTimeout.Std(),
	}
}

func (c Config) Persist() persist.Config {
	return persist.Config{
		MaxRetries:    c.MaxRetries,
		BackupToLocal: c.BackupToLocal,
		BaseBackoff:   c.BaseBackoff,
		MaxBackoff:    c.MaxBackoff,
	}
}
