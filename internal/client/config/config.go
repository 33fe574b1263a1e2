// Package config loads settings for the session CLI: defaults, then an
// optional JSON file (-c / -config), then flags.
//
//	-a string   address:port of the session gRPC endpoint
//	-t int      per-request timeout in seconds
//
// JSON keys are server_endpoint_addr and request_timeout ("5s" or
// nanoseconds).
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the session CLI.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 5 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags. Later sources take
// precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	args := os.Args[1:]
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
