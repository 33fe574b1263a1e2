package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/authsession/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   gRPC bind address (e.g. ":50051")
//	-w string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-k string   storage backend: postgres | memory
//	-s string   JWT HMAC secret
//	-z string   JWT zone (IANA name)
//	-t int      access token TTL, minutes
//	-r int      refresh token TTL, minutes
//	-b string   public base URL (cookie domain and secure flag)
//	-l string   log level
//
// Only these flags are parsed (see flagx.FilterArgs); parse errors panic.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-w", "-d", "-k", "-s", "-z", "-t", "-r", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (postgres|memory)")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret key")
	fs.StringVar(&config.JWTZone, "z", config.JWTZone, "JWT zone")
	fs.StringVar(&config.BaseURL, "b", config.BaseURL, "public base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	accessTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token TTL (in minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh token TTL (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
}
