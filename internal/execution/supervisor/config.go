package supervisor

import (
	"time"

	"github.com/lambda-feedback/respawn/internal/execution/worker"
	"github.com/lambda-feedback/respawn/util/conf"
)

// StartConfig describes the configuration for starting the worker.
type StartConfig = worker.StartConfig

type Config struct {
	// StartParams are the parameters used to launch the worker.
	StartParams StartConfig `conf:",squash"`

	// WithoutTty disables attaching the worker to the terminal. If
	// false, the worker inherits stdin, stdout and stderr, otherwise
	// its output is forwarded to the output sink.
	WithoutTty bool `conf:"without_tty"`

	// GracePeriod is how long to wait after launching the worker before
	// checking it is still alive. A worker exiting within the grace
	// period is considered misconfigured.
	GracePeriod time.Duration `conf:"grace_period"`

	// StopSignal is the signal sent to stop the worker on restart.
	StopSignal string `conf:"stop_signal"`
}

var DefaultConfig = conf.DefaultConfig{
	"shell":        worker.DefaultShell,
	"without_tty":  false,
	"grace_period": "1s",
	"stop_signal":  "SIGTERM",
}
