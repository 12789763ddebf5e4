package shell

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Result records why the application shut down. It is provided to the
// fx application, so modules can report a failure before requesting
// shutdown with a non-zero exit code.
type Result struct {
	mu  sync.Mutex
	err error
}

// Fail records err. Only the first error is kept.
func (r *Result) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.err = err
	}
}

func (r *Result) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

type Shell struct {
	log     *zap.Logger
	fxApp   *fx.App
	options []fx.Option
}

func New(log *zap.Logger, options ...fx.Option) *Shell {
	return &Shell{
		log:     log,
		options: options,
	}
}

// Run starts the application and blocks until it is shut down, either
// by an OS signal or by a module. The returned error is always an
// *ExitError carrying the exit code.
func (s *Shell) Run(ctx context.Context, options ...fx.Option) error {
	// 0. after run ends, flush the logger
	defer s.log.Sync()

	// 1. create shell context
	shellCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2. create execution context
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	result := &Result{}

	// 3. create fx application with app context
	fxApp := s.createFxApp(appCtx, result, options...)
	s.fxApp = fxApp

	if err := fxApp.Err(); err != nil {
		return NewExitError(1, fmt.Errorf("failed to create app: %w", err))
	}

	// 4. create start context w/ timeout
	startCtx, cancelStart := context.WithTimeout(shellCtx, fxApp.StartTimeout())
	defer cancelStart()

	// 5. start the application, exit on error
	if err := fxApp.Start(startCtx); err != nil {
		return NewExitError(1, fmt.Errorf("failed to start: %w", err))
	}

	// 6. wait for done signal by OS or a module
	sig := <-fxApp.Wait()
	exitCode := sig.ExitCode

	s.log.Debug("shutting down", zap.Int("exit_code", exitCode))

	// 7. create shutdown context, without deadline if no stop timeout is set
	stopCtx, cancelStop := s.stopContext(shellCtx, fxApp)
	defer cancelStop()

	// 8. gracefully shutdown the app, exit on error
	if err := fxApp.Stop(stopCtx); err != nil {
		return NewExitError(1, fmt.Errorf("failed to stop: %w", err))
	}

	// 9. return with the exit code requested on shutdown
	if exitCode != 0 {
		return NewExitError(exitCode, result.Err())
	}

	return NewExitError(0, nil)
}

func (s *Shell) stopContext(ctx context.Context, fxApp *fx.App) (context.Context, context.CancelFunc) {
	if timeout := fxApp.StopTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}

	return context.WithCancel(ctx)
}

func (s *Shell) createFxApp(ctx context.Context, result *Result, options ...fx.Option) *fx.App {
	// 1. create fx application
	return fx.New(
		// 2. inject global execution context
		fx.Supply(fx.Annotate(ctx, fx.As(new(context.Context)))),

		// 3. inject the logger
		fx.Supply(s.log),

		// 4. inject the result, so modules can report failures
		fx.Supply(result),

		// 5. use the logger also for fx' logs
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: s.log.Named("fx")}
		}),

		// 6. provide user-provided options
		fx.Options(s.options...),

		// 7. provide user-provided run options
		fx.Options(options...),
	)
}
