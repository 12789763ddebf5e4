package supervise

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/respawn/internal/controller"
	"github.com/lambda-feedback/respawn/internal/execution/supervisor"
	"github.com/lambda-feedback/respawn/internal/execution/worker"
	"github.com/lambda-feedback/respawn/internal/metrics"
	"github.com/lambda-feedback/respawn/internal/shell"
	"github.com/lambda-feedback/respawn/internal/watch"
	"github.com/lambda-feedback/respawn/util/logging"
)

type Config struct {
	// Watch configures the watched paths and the restart policy.
	Watch controller.Config

	// Supervisor configures the worker process.
	Supervisor supervisor.Config
}

func Module(config Config) fx.Option {
	return fx.Module(
		"supervise",
		// provide module config
		fx.Supply(config.Watch, config.Supervisor, config.Watch.Subscription),
		// rename logger for module
		logging.DecorateLogger("supervise"),
		// provide watch subscription
		fx.Provide(NewSubscriber),
		// provide supervisor
		fx.Provide(NewSupervisor),
		// provide controller
		fx.Provide(NewController),
		// run controller
		fx.Invoke(registerController),
	)
}

func NewSubscriber(config watch.Config, log *zap.Logger) watch.Subscriber {
	return watch.NewFSNotifySubscriber(config, log)
}

type SupervisorParams struct {
	fx.In

	Config  supervisor.Config
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func NewSupervisor(params SupervisorParams) (supervisor.Supervisor, error) {
	return supervisor.New(supervisor.Params{
		Config:  params.Config,
		Sink:    worker.NewWriterSink(os.Stdout, os.Stderr),
		Metrics: params.Metrics,
		Log:     params.Log,
	})
}

type ControllerParams struct {
	fx.In

	Config     controller.Config
	Supervisor supervisor.Supervisor
	Subscriber watch.Subscriber
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

func NewController(params ControllerParams) (*controller.RestartController, error) {
	return controller.New(controller.Params{
		Config:     params.Config,
		Supervisor: params.Supervisor,
		Subscriber: params.Subscriber,
		Metrics:    params.Metrics,
		Log:        params.Log,
	})
}

type runParams struct {
	fx.In

	Context    context.Context
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Controller *controller.RestartController
	Result     *shell.Result
	Log        *zap.Logger
}

// registerController starts the worker on app start and runs the
// restart loop until it ends, which shuts down the app. On app stop,
// the worker is stopped gracefully.
func registerController(params runParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Controller.Start(ctx); err != nil {
				return err
			}

			go run(params)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return params.Controller.Shutdown(ctx)
		},
	})
}

func run(params runParams) {
	exitCode := 0

	if err := params.Controller.Run(params.Context); err != nil {
		params.Log.Error("supervision failed", zap.Error(err))
		params.Result.Fail(err)
		exitCode = 1
	}

	if err := params.Shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
		params.Log.Warn("failed to request shutdown", zap.Error(err))
	}
}
