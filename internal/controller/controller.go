package controller

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/lambda-feedback/respawn/internal/execution/supervisor"
	"github.com/lambda-feedback/respawn/internal/metrics"
	"github.com/lambda-feedback/respawn/internal/watch"
)

// TerminationSignals are trapped by the controller and forwarded to the worker.
var TerminationSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

type Params struct {
	// Config is the watch configuration.
	Config Config

	// Supervisor owns the worker process.
	Supervisor supervisor.Supervisor

	// Subscriber delivers filesystem change events.
	Subscriber watch.Subscriber

	// Notify and StopNotify register the signal trap. They default to
	// signal.Notify and signal.Stop.
	Notify     func(c chan<- os.Signal, sig ...os.Signal)
	StopNotify func(c chan<- os.Signal)

	// Metrics are updated for every change event and restart.
	Metrics *metrics.Metrics

	// Log is the logger to use for the controller
	Log *zap.Logger
}

// RestartController runs the supervised restart loop. It starts the
// worker, restarts it on qualifying changes and forwards termination
// signals to it.
type RestartController struct {
	paths  []string
	policy *Policy

	supervisor supervisor.Supervisor
	subscriber watch.Subscriber

	notify     func(c chan<- os.Signal, sig ...os.Signal)
	stopNotify func(c chan<- os.Signal)

	// signals receives trapped OS signals, requests receives termination
	// requests from Shutdown. A nil request uses the stop signal.
	signals  chan os.Signal
	requests chan os.Signal

	state       atomic.Int32
	started     atomic.Bool
	terminating atomic.Bool

	// current is only touched by Start and the run loop
	current *supervisor.WorkerProcess

	done     chan struct{}
	doneOnce sync.Once

	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(params Params) (*RestartController, error) {
	if params.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	if params.Subscriber == nil {
		return nil, fmt.Errorf("subscriber is required")
	}

	if len(params.Config.Paths) == 0 {
		return nil, watch.ErrNoPaths
	}

	if params.Notify == nil {
		params.Notify = signal.Notify
	}

	if params.StopNotify == nil {
		params.StopNotify = signal.Stop
	}

	if params.Metrics == nil {
		params.Metrics = metrics.NewNop()
	}

	return &RestartController{
		paths:      params.Config.Paths,
		policy:     NewPolicy(params.Config.Paths, params.Config.Extensions),
		supervisor: params.Supervisor,
		subscriber: params.Subscriber,
		notify:     params.Notify,
		stopNotify: params.StopNotify,
		signals:    make(chan os.Signal, len(TerminationSignals)),
		requests:   make(chan os.Signal, 1),
		done:       make(chan struct{}),
		metrics:    params.Metrics,
		log:        params.Log.Named("controller"),
	}, nil
}

// Start traps termination signals and starts the worker. If the worker
// cannot be started, the controller is stopped and the error returned.
func (c *RestartController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.notify(c.signals, TerminationSignals...)

	p, err := c.supervisor.Start(ctx)
	if err != nil {
		c.log.Error("failed to start worker", zap.Error(err))
		c.finish()
		return fmt.Errorf("failed to start worker: %w", err)
	}

	c.current = p
	c.setState(Running)

	return nil
}

// Run consumes change events until a termination signal or request is
// received, or a restart fails. It returns nil after a clean shutdown.
func (c *RestartController) Run(ctx context.Context) error {
	if c.State() != Running {
		return ErrNotRunning
	}

	defer c.finish()

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()

	events, err := c.subscriber.Subscribe(subCtx, c.paths)
	if err != nil {
		c.log.Error("failed to watch paths", zap.Error(err))
		_ = c.shutdown(ctx, cancelSub, nil)
		return fmt.Errorf("failed to watch paths: %w", err)
	}

	c.log.Info("watching for changes", zap.Strings("paths", c.paths))

	for {
		// termination takes priority over pending changes
		select {
		case sig := <-c.signals:
			return c.shutdown(ctx, cancelSub, sig)
		default:
		}

		select {
		case sig := <-c.requests:
			return c.shutdown(ctx, cancelSub, sig)
		default:
		}

		select {
		case sig := <-c.signals:
			return c.shutdown(ctx, cancelSub, sig)

		case sig := <-c.requests:
			return c.shutdown(ctx, cancelSub, sig)

		case <-ctx.Done():
			return c.shutdown(ctx, cancelSub, nil)

		case evt, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return c.shutdown(ctx, cancelSub, nil)
				}

				_ = c.shutdown(ctx, cancelSub, nil)
				return ErrWatchClosed
			}

			if err := c.handle(ctx, evt, events); err != nil {
				return err
			}
		}
	}
}

// Shutdown requests termination with the stop signal and waits for the
// run loop to finish.
func (c *RestartController) Shutdown(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	select {
	case c.requests <- nil:
	default:
		// a request is already pending
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RestartController) State() State {
	return State(c.state.Load())
}

// Done is closed once the controller is stopped.
func (c *RestartController) Done() <-chan struct{} {
	return c.done
}

func (c *RestartController) handle(ctx context.Context, evt watch.Event, pending <-chan watch.Event) error {
	if c.terminating.Load() {
		return nil
	}

	log := c.log.With(zap.String("path", evt.Path), zap.String("kind", string(evt.Kind)))

	if !c.policy.ShouldRestart(evt.Path) {
		c.metrics.ChangeEvents.WithLabelValues(metrics.DecisionIgnore).Inc()
		log.Debug("ignoring change")
		return nil
	}

	c.metrics.ChangeEvents.WithLabelValues(metrics.DecisionRestart).Inc()
	log.Info("change detected, restarting worker")

	return c.restart(ctx, pending)
}

func (c *RestartController) restart(ctx context.Context, pending <-chan watch.Event) error {
	c.setState(Restarting)

	// the old worker has to be gone before the next one starts
	if err := c.supervisor.Stop(context.WithoutCancel(ctx), c.current, nil); err != nil {
		c.log.Error("failed to stop worker", zap.Error(err))
		return fmt.Errorf("failed to stop worker: %w", err)
	}

	// the next worker sees every change made up to its start
	c.coalesce(pending)

	p, err := c.supervisor.Start(ctx)
	if err != nil {
		c.log.Error("failed to restart worker", zap.Error(err))
		return fmt.Errorf("failed to restart worker: %w", err)
	}

	c.current = p
	c.metrics.Restarts.Inc()
	c.setState(Running)

	return nil
}

// coalesce drops the changes queued so far. Changes arriving once the
// next worker is launched are still handled afterwards.
func (c *RestartController) coalesce(pending <-chan watch.Event) {
	for {
		select {
		case evt, ok := <-pending:
			if !ok {
				return
			}

			if c.policy.ShouldRestart(evt.Path) {
				c.metrics.ChangeEvents.WithLabelValues(metrics.DecisionCoalesce).Inc()
				c.log.Debug("change covered by restart", zap.String("path", evt.Path))
			} else {
				c.metrics.ChangeEvents.WithLabelValues(metrics.DecisionIgnore).Inc()
			}
		default:
			return
		}
	}
}

// shutdown forwards sig to the worker and waits for it to exit. No
// change events are handled afterwards.
func (c *RestartController) shutdown(ctx context.Context, cancelSub context.CancelFunc, sig os.Signal) error {
	c.terminating.Store(true)
	c.setState(ShuttingDown)
	cancelSub()

	log := c.log.With(zap.String("signal", signalName(sig)))
	log.Info("shutting down")

	if err := c.supervisor.Stop(context.WithoutCancel(ctx), c.current, sig); err != nil {
		log.Error("failed to stop worker", zap.Error(err))
		return fmt.Errorf("failed to stop worker: %w", err)
	}

	log.Info("shutdown complete")

	return nil
}

func (c *RestartController) finish() {
	c.doneOnce.Do(func() {
		c.stopNotify(c.signals)
		c.setState(Stopped)
		close(c.done)
	})
}

func (c *RestartController) setState(state State) {
	c.state.Store(int32(state))
}

func signalName(sig os.Signal) string {
	if sig == nil {
		return "default"
	}

	return sig.String()
}
