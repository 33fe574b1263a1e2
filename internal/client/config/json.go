package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authsession/internal/flagx"
	"github.com/dmitrijs2005/authsession/internal/timex"
)

// JsonConfig is the on-disk form of Config. Absent keys keep earlier values.
type JsonConfig struct {
	ServerEndpointAddr *string         `json:"server_endpoint_addr"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the file named by -c / -config, if any.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
