package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// CacheConfig defines settings for the availability response cache.  When
// Enabled is false or no Redis client is configured, caching is disabled.
// MaxBodyBytes bounds the size of a cached response.
type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() (CacheConfig, error) {
	var c CacheConfig
	if err := envconfig.Process("", &c); err != nil {
		return CacheConfig{}, err
	}
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	return c, nil
}

// RateLimitConfig defines the token bucket applied to booking mutations.
// KeyStrategy is one of ip, route or ip_route.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"20"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"3s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"RATE_LIMIT_KEY_STRATEGY" default:"ip_route"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
	Debug          bool          `envconfig:"RATE_LIMIT_DEBUG" default:"false"`
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables and clamps them to
// workable values.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	var c RateLimitConfig
	if err := envconfig.Process("", &c); err != nil {
		return RateLimitConfig{}, err
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c, nil
}
