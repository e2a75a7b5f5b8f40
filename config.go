package fence

import "time"

// Config holds configuration for the permission broker.
type Config struct {
	// SensitivePathPrefixes lists filesystem prefixes whose paths
	// require a user prompt. Empty (the default) means filesystem
	// permissions are never prompt-worthy; sandbox profiles handle them.
	SensitivePathPrefixes []string `json:"sensitive_path_prefixes,omitempty"`

	// PendingTTL is how long an unanswered prompt token stays valid.
	// Defaults to 5 minutes.
	PendingTTL time.Duration `json:"pending_ttl,omitempty"`

	// MaxPending bounds the number of simultaneously pending prompts.
	// The oldest entry is evicted at capacity. Defaults to 1024.
	MaxPending int `json:"max_pending,omitempty"`

	// CleanupInterval is how often expired policies are swept from the
	// store while the broker runs. Defaults to 15 minutes.
	CleanupInterval time.Duration `json:"cleanup_interval,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PendingTTL:      5 * time.Minute,
		MaxPending:      1024,
		CleanupInterval: 15 * time.Minute,
	}
}

// normalized fills zero fields with defaults so a partial WithConfig
// does not disable the bounds.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.PendingTTL <= 0 {
		c.PendingTTL = def.PendingTTL
	}
	if c.MaxPending <= 0 {
		c.MaxPending = def.MaxPending
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}
