package server

import "github.com/lambda-feedback/respawn/util/conf"

type HttpConfig struct {
	Host string `conf:"host"`
	Port int    `conf:"port"`
	H2c  bool   `conf:"h2c"`
}

// Enabled reports whether the server should listen at all.
func (c HttpConfig) Enabled() bool {
	return c.Port > 0
}

var DefaultConfig = conf.DefaultConfig{
	"host": "localhost",
	"port": 0,
	"h2c":  false,
}
