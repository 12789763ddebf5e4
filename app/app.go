package app

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/lambda-feedback/respawn/config"
	"github.com/lambda-feedback/respawn/internal/shell"
	"github.com/lambda-feedback/respawn/util/conf"
	"github.com/lambda-feedback/respawn/util/logging"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
	)

	return shell.New(
		log,
		sharedModule,
		// starting includes the grace period of the worker
		fx.StartTimeout(fx.DefaultTimeout+config.Supervisor.GracePeriod),
		// stopping waits for the worker without a deadline
		fx.StopTimeout(0),
	), nil
}
