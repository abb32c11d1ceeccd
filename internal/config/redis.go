package config

// Redis backs the project response cache and the rate limiter.  Both are
// optional: when no address is configured or the server cannot be reached
// at startup, NewRedisClient returns nil and the middlewares degrade to
// pass-through.

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters.  Addr takes precedence over
// Host/Port when both are set.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	TLS      bool   `env:"REDIS_TLS" env-default:"false"`
}

func (r RedisConfig) address() string {
	if r.Addr != "" {
		return r.Addr
	}
	if r.Host != "" {
		return r.Host + ":" + r.Port
	}
	return ""
}

// NewRedisClient connects to Redis and pings it with a short timeout.
// It returns nil when Redis is not configured or unreachable.
func NewRedisClient(cfg RedisConfig, logger *slog.Logger) *redis.Client {
	addr := cfg.address()
	if addr == "" {
		logger.Info("redis not configured; cache and rate limiting disabled")
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable; cache and rate limiting disabled", "addr", addr, "err", err)
		_ = client.Close()
		return nil
	}
	return client
}
