package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/respawn/app"
	metricsapp "github.com/lambda-feedback/respawn/app/metrics"
	"github.com/lambda-feedback/respawn/app/supervise"
	"github.com/lambda-feedback/respawn/config"
	"github.com/lambda-feedback/respawn/internal/shell"
	"github.com/lambda-feedback/respawn/util/conf"
)

var (
	watchCmdDescription = `The watch command starts the worker process and watches the
configured paths for changes. A change to a source file or to
a watched path itself stops the worker, kills the processes it
spawned and starts it again.

Interrupt, terminate and quit signals are forwarded to the
worker. The command exits once the worker has stopped.

This is the default command.`
	watchCmd = &cli.Command{
		Name:        "watch",
		Usage:       "Start the worker and restart it on changes.",
		Description: watchCmdDescription,
		Action:      watchAction,
	}
)

func watchAction(ctx *cli.Context) error {
	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return shell.NewExitError(1, err)
	}

	if err := cfg.Validate(); err != nil {
		return shell.NewExitError(1, err)
	}

	app, err := app.New(ctx)
	if err != nil {
		return shell.NewExitError(1, err)
	}

	return app.Run(ctx.Context,
		metricsapp.Module(cfg.Metrics),
		supervise.Module(supervise.Config{
			Watch:      cfg.Watch,
			Supervisor: cfg.Supervisor,
		}),
	)
}

func init() {
	rootApp.Commands = append(rootApp.Commands, watchCmd)
}
