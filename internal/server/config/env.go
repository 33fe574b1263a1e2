package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variable names read by parseEnv.
const (
	EnvGRPCAddr         = "AUTH_GRPC_ADDR"
	EnvHTTPAddr         = "AUTH_HTTP_ADDR"
	EnvDatabaseDSN      = "AUTH_DATABASE_DSN"
	EnvStorage          = "AUTH_STORAGE"
	EnvRefreshStore     = "AUTH_REFRESH_STORE"
	EnvRedisAddr        = "AUTH_REDIS_ADDR"
	EnvRedisPassword    = "AUTH_REDIS_PASSWORD"
	EnvRedisDB          = "AUTH_REDIS_DB"
	EnvJWTSecret        = "AUTH_JWT_SECRET"
	EnvJWTIssuer        = "AUTH_JWT_ISSUER"
	EnvJWTZone          = "AUTH_JWT_ZONE"
	EnvAccessTTL        = "AUTH_ACCESS_TTL"
	EnvRefreshTTL       = "AUTH_REFRESH_TTL"
	EnvRefreshHashSalt  = "AUTH_REFRESH_HASH_SALT"
	EnvRefreshHashCost  = "AUTH_REFRESH_HASH_COST"
	EnvRefreshHashMemKB = "AUTH_REFRESH_HASH_MEMORY_KIB"
	EnvPasswordHashCost = "AUTH_PASSWORD_HASH_COST"
	EnvBaseURL          = "AUTH_BASE_URL"
	EnvTokenSource      = "AUTH_TOKEN_SOURCE"
	EnvSweepInterval    = "AUTH_SWEEP_INTERVAL"
	EnvLogLevel         = "AUTH_LOG_LEVEL"
)

// parseEnv overlays values found through lookup (os.LookupEnv in
// production). Durations use Go syntax ("15m", "168h").
func parseEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvGRPCAddr, &c.EndpointAddrGRPC)
	str(EnvHTTPAddr, &c.EndpointAddrHTTP)
	str(EnvDatabaseDSN, &c.DatabaseDSN)
	str(EnvStorage, &c.StorageBackend)
	str(EnvRefreshStore, &c.RefreshStoreBackend)
	str(EnvRedisAddr, &c.RedisAddr)
	str(EnvRedisPassword, &c.RedisPassword)
	str(EnvJWTSecret, &c.JWTSecret)
	str(EnvJWTIssuer, &c.JWTIssuer)
	str(EnvJWTZone, &c.JWTZone)
	str(EnvRefreshHashSalt, &c.RefreshTokenHashSalt)
	str(EnvBaseURL, &c.BaseURL)
	str(EnvTokenSource, &c.TokenSource)
	str(EnvLogLevel, &c.LogLevel)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvAccessTTL, &c.AccessTokenTTL},
		{EnvRefreshTTL, &c.RefreshTokenTTL},
		{EnvSweepInterval, &c.SweepInterval},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfig, d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup(EnvRedisDB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfig, EnvRedisDB, err)
		}
		c.RedisDB = n
	}

	if v, ok := lookup(EnvPasswordHashCost); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfig, EnvPasswordHashCost, err)
		}
		c.PasswordHashCost = n
	}

	uints := []struct {
		key string
		dst *uint32
	}{
		{EnvRefreshHashCost, &c.RefreshTokenHashCost},
		{EnvRefreshHashMemKB, &c.RefreshTokenHashMemoryKiB},
	}
	for _, u := range uints {
		v, ok := lookup(u.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfig, u.key, err)
		}
		*u.dst = uint32(n)
	}

	return nil
}
