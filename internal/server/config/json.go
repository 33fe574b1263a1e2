package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/authsession/internal/flagx"
	"github.com/dmitrijs2005/authsession/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Only
// fields present in the file override the current values.
type JsonConfig struct {
	EndpointAddrGRPC          *string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP          *string         `json:"endpoint_addr_http"`
	DatabaseDSN               *string         `json:"database_dsn"`
	StorageBackend            *string         `json:"storage_backend"`
	RefreshStoreBackend       *string         `json:"refresh_store_backend"`
	RedisAddr                 *string         `json:"redis_addr"`
	RedisPassword             *string         `json:"redis_password"`
	RedisDB                   *int            `json:"redis_db"`
	JWTSecret                 *string         `json:"jwt_secret"`
	JWTIssuer                 *string         `json:"jwt_issuer"`
	JWTZone                   *string         `json:"jwt_zone"`
	AccessTokenTTL            *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL           *timex.Duration `json:"refresh_token_ttl"`
	RefreshTokenHashSalt      *string         `json:"refresh_token_hash_salt"`
	RefreshTokenHashCost      *uint32         `json:"refresh_token_hash_cost"`
	RefreshTokenHashMemoryKiB *uint32         `json:"refresh_token_hash_memory_kib"`
	PasswordHashCost          *int            `json:"password_hash_cost"`
	BaseURL                   *string         `json:"base_url"`
	TokenSource               *string         `json:"token_source"`
	SweepInterval             *timex.Duration `json:"sweep_interval"`
	LogLevel                  *string         `json:"log_level"`
}

// parseJson loads the file named by -c / -config in args, if any, and
// copies the fields it sets into config. Unreadable files and invalid JSON
// panic.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.RefreshStoreBackend, c.RefreshStoreBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.JWTIssuer, c.JWTIssuer)
	setString(&config.JWTZone, c.JWTZone)
	setString(&config.RefreshTokenHashSalt, c.RefreshTokenHashSalt)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.TokenSource, c.TokenSource)
	setString(&config.LogLevel, c.LogLevel)

	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.RefreshTokenHashCost != nil {
		config.RefreshTokenHashCost = *c.RefreshTokenHashCost
	}
	if c.RefreshTokenHashMemoryKiB != nil {
		config.RefreshTokenHashMemoryKiB = *c.RefreshTokenHashMemoryKiB
	}
	if c.PasswordHashCost != nil {
		config.PasswordHashCost = *c.PasswordHashCost
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
