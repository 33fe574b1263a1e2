package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/authsession/internal/flagx"
)

// parseFlags overlays cfg with -a and -t. Other arguments are ignored.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-t"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
