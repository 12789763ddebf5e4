package shell_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/respawn/internal/shell"
)

func shutdownOnStart(code int, err error) fx.Option {
	return fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, result *shell.Result) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				if err != nil {
					result.Fail(err)
				}
				return sd.Shutdown(fx.ExitCode(code))
			},
		})
	})
}

func TestShell_Run_ExitsCleanly(t *testing.T) {
	s := shell.New(zap.NewNop())

	err := s.Run(context.Background(), shutdownOnStart(0, nil))

	var exitErr *shell.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 0, exitErr.ExitCode)
	assert.NoError(t, exitErr.Err)
	assert.Equal(t, 0, shell.ExitCode(err))
}

func TestShell_Run_ReportsModuleFailure(t *testing.T) {
	s := shell.New(zap.NewNop())
	failure := errors.New("failed to restart worker")

	err := s.Run(context.Background(), shutdownOnStart(1, failure))

	assert.Equal(t, 1, shell.ExitCode(err))
	assert.ErrorIs(t, err, failure)
	assert.ErrorContains(t, err, "failed to restart worker")
}

func TestShell_Run_StartFailure(t *testing.T) {
	s := shell.New(zap.NewNop())
	failure := errors.New("worker exited immediately")

	err := s.Run(context.Background(), fx.Invoke(func(lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return failure
			},
		})
	}))

	assert.True(t, shell.IsExitError(err))
	assert.Equal(t, 1, shell.ExitCode(err))
	assert.ErrorIs(t, err, failure)
	assert.ErrorContains(t, err, "failed to start")
}

func TestShell_Run_StopWithoutTimeout(t *testing.T) {
	s := shell.New(zap.NewNop())

	var hasDeadline bool

	err := s.Run(context.Background(),
		fx.StopTimeout(0),
		shutdownOnStart(0, nil),
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					_, hasDeadline = ctx.Deadline()
					return nil
				},
			})
		}),
	)

	assert.Equal(t, 0, shell.ExitCode(err))
	assert.False(t, hasDeadline)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, shell.ExitCode(nil))
	assert.Equal(t, 1, shell.ExitCode(errors.New("boom")))
	assert.Equal(t, 3, shell.ExitCode(shell.NewExitError(3, nil)))
	assert.False(t, shell.IsExitError(nil))
}
