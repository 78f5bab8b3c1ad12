package config

// This file defines the Redis client constructor.  Redis backs the shared
// rate limiter when several instances run behind a load balancer.  If the
// connection fails during startup the constructor returns nil and callers
// degrade to the in-process limiter.

import (
    "context"
    "crypto/tls"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/spf13/viper"
)

// RedisConfig holds connection parameters.  REDIS_ADDR is a host:port
// shorthand; REDIS_HOST and REDIS_PORT take precedence when both are set.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

func loadRedisConfig(v *viper.Viper) RedisConfig {
    addr := v.GetString("REDIS_ADDR")
    if host, port := v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    tlsEnv := v.GetString("REDIS_TLS")
    return RedisConfig{
        Addr:     addr,
        Password: v.GetString("REDIS_PASSWORD"),
        DB:       v.GetInt("REDIS_DB"),
        TLS:      strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
    }
}

// NewRedisClient dials Redis and pings it with a short timeout.  The
// returned client is nil if the server cannot be reached.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
