package config

import (
	"github.com/lambda-feedback/respawn/internal/controller"
	"github.com/lambda-feedback/respawn/internal/execution/supervisor"
	"github.com/lambda-feedback/respawn/internal/server"
	"github.com/lambda-feedback/respawn/util/conf"
)

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "RESPAWN_"

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Watch configures which changes restart the worker
	Watch controller.Config `conf:"watch"`

	// Supervisor configures how the worker is started and stopped
	Supervisor supervisor.Config `conf:"supervisor"`

	// Metrics configures the metrics endpoint, disabled if the port is 0
	Metrics server.HttpConfig `conf:"metrics"`
}

// Validate checks that the values without defaults are set.
func (c Config) Validate() error {
	if err := conf.Require("watch.paths", len(c.Watch.Paths) == 0); err != nil {
		return err
	}

	return conf.Require("supervisor.command", c.Supervisor.StartParams.Command == "")
}

var DefaultConfig = conf.DefaultConfig{
	"log_level":  "info",
	"log_format": "production",
}.
	Mount("watch", controller.DefaultConfig).
	Mount("supervisor", supervisor.DefaultConfig).
	Mount("metrics", server.DefaultConfig)
