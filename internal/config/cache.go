package config

import "time"

// CacheConfig defines settings for the public project response cache.
// Caching is disabled when Enabled is false or no Redis client could be
// created.  Only anonymous GET responses with status 200 are stored;
// Prefix namespaces the keys so that a project mutation can purge all of
// them at once.  MaxBodyBytes bounds the size of a cached body.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" env-default:"true"`
	TTL          time.Duration `env:"CACHE_TTL" env-default:"60s"`
	Prefix       string        `env:"CACHE_PREFIX" env-default:"cache:projects"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" env-default:"1048576"`
}
