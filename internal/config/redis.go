package config

// Redis backs the rate limiter and the availability cache.  Both degrade to
// pass-through when the client is nil, so a missing Redis never blocks
// bookings.

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings.  REDIS_HOST and REDIS_PORT
// take precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Host     string `envconfig:"REDIS_HOST"`
	Port     string `envconfig:"REDIS_PORT"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	TLS      bool   `envconfig:"REDIS_TLS" default:"false"`
}

// LoadRedisConfig reads the REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
	var c RedisConfig
	if err := envconfig.Process("", &c); err != nil {
		return RedisConfig{}, err
	}
	if c.Host != "" && c.Port != "" {
		c.Addr = net.JoinHostPort(c.Host, c.Port)
	}
	return c, nil
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when Redis is disabled or unreachable; callers then run
// without caching and rate limiting.
func NewRedisClient(c RedisConfig) *redis.Client {
	if !c.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if c.TLS {
		host, _, _ := net.SplitHostPort(c.Addr)
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping %s failed: %v; caching and rate limiting disabled", c.Addr, err)
		_ = client.Close()
		return nil
	}
	return client
}
