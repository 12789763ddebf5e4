package supervise_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	metricsapp "github.com/lambda-feedback/respawn/app/metrics"
	"github.com/lambda-feedback/respawn/app/supervise"
	"github.com/lambda-feedback/respawn/internal/controller"
	"github.com/lambda-feedback/respawn/internal/execution/supervisor"
	"github.com/lambda-feedback/respawn/internal/metrics"
	"github.com/lambda-feedback/respawn/internal/server"
	"github.com/lambda-feedback/respawn/internal/shell"
)

func moduleConfig(t *testing.T, command string) (supervise.Config, string) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return supervise.Config{
		Watch: controller.Config{
			Paths:      []string{dir},
			Extensions: []string{".php"},
		},
		Supervisor: supervisor.Config{
			StartParams: supervisor.StartConfig{Command: command},
			WithoutTty:  true,
			GracePeriod: 100 * time.Millisecond,
			StopSignal:  "SIGTERM",
		},
	}, dir
}

func newApp(t *testing.T, config supervise.Config, populate ...any) *fxtest.App {
	return fxtest.New(t,
		fx.NopLogger,
		fx.Supply(zap.NewNop()),
		fx.Supply(fx.Annotate(context.Background(), fx.As(new(context.Context)))),
		fx.Supply(&shell.Result{}),
		metricsapp.Module(server.HttpConfig{}),
		supervise.Module(config),
		fx.Populate(populate...),
	)
}

func TestModule_RestartsWorkerOnChange(t *testing.T) {
	config, dir := moduleConfig(t, "sleep 30")

	var (
		ctrl *controller.RestartController
		m    *metrics.Metrics
	)

	app := newApp(t, config, &ctrl, &m)
	app.RequireStart()

	assert.Equal(t, controller.Running, ctrl.State())

	// the subscription is set up asynchronously
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "index.php"), []byte("<?php"), 0o644)
		return testutil.ToFloat64(m.Restarts) >= 1
	}, 10*time.Second, 200*time.Millisecond)

	app.RequireStop()

	assert.Equal(t, controller.Stopped, ctrl.State())
}

func TestModule_FailsToStartWithExitingWorker(t *testing.T) {
	config, _ := moduleConfig(t, "exit 3")

	app := fx.New(
		fx.NopLogger,
		fx.Supply(zap.NewNop()),
		fx.Supply(fx.Annotate(context.Background(), fx.As(new(context.Context)))),
		fx.Supply(&shell.Result{}),
		metricsapp.Module(server.HttpConfig{}),
		supervise.Module(config),
	)

	err := app.Start(context.Background())
	require.Error(t, err)

	var startErr *supervisor.StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, supervisor.ImmediateExit, startErr.Reason)
}
