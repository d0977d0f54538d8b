package config

// Redis backs the response cache and the write rate limiter.  If the
// server cannot be reached at startup NewRedisClient returns nil and both
// features degrade: caching turns off and rate limiting stays in process.

import (
    "context"
    "crypto/tls"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/spf13/viper"
)

// NewRedisClient builds a client from REDIS_ADDR (or REDIS_HOST and
// REDIS_PORT), REDIS_PASSWORD, REDIS_DB and REDIS_TLS, and pings it.
func NewRedisClient(v *viper.Viper) *redis.Client {
    v.SetDefault("REDIS_ADDR", "localhost:6379")
    addr := v.GetString("REDIS_ADDR")
    if host, port := v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    var tlsConf *tls.Config
    if t := v.GetString("REDIS_TLS"); strings.EqualFold(t, "true") || t == "1" {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  v.GetString("REDIS_PASSWORD"),
        DB:        v.GetInt("REDIS_DB"),
        TLSConfig: tlsConf,
    })

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.Warningf("redis %s unavailable, cache disabled: %v", addr, err)
        _ = client.Close()
        return nil
    }
    return client
}
