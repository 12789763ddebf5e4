package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/lambda-feedback/respawn/internal/execution/proctree"
	"github.com/lambda-feedback/respawn/internal/execution/worker"
	"github.com/lambda-feedback/respawn/internal/metrics"
)

type Supervisor interface {
	// Start launches a new worker process and waits for the grace period.
	// If the worker exits within the grace period, a *StartError with
	// reason ImmediateExit is returned. Starting is only possible if no
	// worker is running or stopping.
	Start(ctx context.Context) (*WorkerProcess, error)

	// IsAlive reports whether the worker process is running. It never blocks.
	IsAlive(p *WorkerProcess) bool

	// Stop kills the direct children of the worker, sends sig to the
	// worker and waits for it to exit. A nil sig sends the configured
	// stop signal. Stop never force-kills the worker itself, it only
	// returns early if ctx is done.
	Stop(ctx context.Context, p *WorkerProcess, sig os.Signal) error

	// KillDescendants kills the direct children of the worker. Failures
	// are logged and otherwise ignored.
	KillDescendants(p *WorkerProcess)

	// Current returns the most recently started worker process, or nil.
	Current() *WorkerProcess
}

// WorkerProcess is a single worker instance.
type WorkerProcess struct {
	worker  worker.Worker
	command string
	tty     bool
	state   atomic.Int32
}

func (p *WorkerProcess) Pid() int {
	return p.worker.Pid()
}

func (p *WorkerProcess) Command() string {
	return p.command
}

func (p *WorkerProcess) Tty() bool {
	return p.tty
}

func (p *WorkerProcess) State() State {
	return State(p.state.Load())
}

func (p *WorkerProcess) setState(state State) {
	p.state.Store(int32(state))
}

type WorkerFactoryFn func(worker.StartConfig, worker.Sink, *zap.Logger) worker.Worker

type Params struct {
	// Config is the config used to launch and stop the worker.
	Config Config

	// WorkerFactory creates a new worker. Defaults to a process worker.
	WorkerFactory WorkerFactoryFn

	// Tree is used to enumerate and kill child processes of the worker.
	Tree proctree.Tree

	// Sink receives the worker output if no tty is attached.
	Sink worker.Sink

	// IsTerminal reports whether stdin is a terminal. Defaults to a
	// check of os.Stdin.
	IsTerminal func() bool

	// Metrics are updated on every lifecycle transition.
	Metrics *metrics.Metrics

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

type ProcessSupervisor struct {
	startParams StartConfig
	gracePeriod time.Duration
	stopSignal  os.Signal

	createWorker func() worker.Worker
	tree         proctree.Tree

	currentLock sync.Mutex
	current     *WorkerProcess

	metrics *metrics.Metrics
	log     *zap.Logger
}

var _ Supervisor = (*ProcessSupervisor)(nil)

func New(params Params) (*ProcessSupervisor, error) {
	config := params.Config
	log := params.Log.Named("supervisor")

	if params.WorkerFactory == nil {
		params.WorkerFactory = defaultWorkerFactory
	}

	if params.Tree == nil {
		params.Tree = proctree.New(params.Log)
	}

	if params.IsTerminal == nil {
		params.IsTerminal = stdinIsTerminal
	}

	if params.Metrics == nil {
		params.Metrics = metrics.NewNop()
	}

	stopSignal, err := ParseSignal(config.StopSignal)
	if err != nil {
		return nil, fmt.Errorf("invalid stop signal: %w", err)
	}

	startParams := config.StartParams
	startParams.Tty = !config.WithoutTty

	if startParams.Tty && !params.IsTerminal() {
		log.Warn("stdin is not a terminal, running worker without tty")
		startParams.Tty = false
	}

	createWorker := func() worker.Worker {
		return params.WorkerFactory(startParams, params.Sink, params.Log)
	}

	return &ProcessSupervisor{
		startParams:  startParams,
		gracePeriod:  config.GracePeriod,
		stopSignal:   stopSignal,
		createWorker: createWorker,
		tree:         params.Tree,
		metrics:      params.Metrics,
		log:          log,
	}, nil
}

func (s *ProcessSupervisor) Start(ctx context.Context) (*WorkerProcess, error) {
	s.currentLock.Lock()
	defer s.currentLock.Unlock()

	if s.current != nil && s.current.State() != Terminated {
		return nil, ErrWorkerAlreadyStarted
	}

	p := &WorkerProcess{
		worker:  s.createWorker(),
		command: s.startParams.Command,
		tty:     s.startParams.Tty,
	}

	if err := p.worker.Start(ctx); err != nil {
		s.metrics.WorkerStarts.WithLabelValues(metrics.StartLaunchFailed).Inc()
		return nil, &StartError{Reason: LaunchFailed, Err: err}
	}

	log := s.log.With(zap.Int("pid", p.Pid()))
	log.Debug("worker launched, waiting for grace period",
		zap.Duration("grace_period", s.gracePeriod),
	)

	timer := time.NewTimer(s.gracePeriod)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-p.worker.Done():
	case <-ctx.Done():
		// the worker was launched, so it has to be stopped again
		p.setState(Running)
		s.current = p
		_ = s.stop(context.WithoutCancel(ctx), p, s.stopSignal)
		return nil, fmt.Errorf("failed to start worker: %w", ctx.Err())
	}

	// the worker may exit right at the end of the grace period
	if !p.worker.Alive() {
		evt, _ := p.worker.Wait(context.WithoutCancel(ctx))

		p.setState(Terminated)
		s.current = p

		s.metrics.WorkerStarts.WithLabelValues(metrics.StartImmediateExit).Inc()
		log.Error("worker exited during grace period", zap.Stringer("exit", evt))

		return nil, &StartError{Reason: ImmediateExit, Exit: evt}
	}

	p.setState(Running)
	s.current = p

	s.metrics.WorkerStarts.WithLabelValues(metrics.StartOK).Inc()
	s.metrics.WorkerUp.Set(1)
	log.Info("worker started", zap.String("command", p.command), zap.Bool("tty", p.tty))

	go s.observe(p)

	return p, nil
}

func (s *ProcessSupervisor) IsAlive(p *WorkerProcess) bool {
	return p != nil && p.worker.Alive()
}

func (s *ProcessSupervisor) Stop(ctx context.Context, p *WorkerProcess, sig os.Signal) error {
	if p == nil {
		return ErrWorkerNotStarted
	}

	if sig == nil {
		sig = s.stopSignal
	}

	return s.stop(ctx, p, sig)
}

func (s *ProcessSupervisor) stop(ctx context.Context, p *WorkerProcess, sig os.Signal) error {
	if !p.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		switch p.State() {
		case NotStarted:
			return ErrWorkerNotStarted
		case Terminated:
			s.log.Debug("worker already terminated", zap.Int("pid", p.Pid()))
			return nil
		}
	}

	log := s.log.With(zap.Int("pid", p.Pid()), zap.Stringer("signal", sig))

	// stopping the worker does not stop its children,
	// which may hold on to resources the next worker needs
	s.KillDescendants(p)

	log.Info("stopping worker")

	if err := p.worker.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		fwdErr := &SignalForwardError{Signal: sig, Pid: p.Pid(), Err: err}
		s.metrics.SignalForwardErrors.Inc()
		log.Warn("failed to signal worker", zap.Error(fwdErr))
	}

	evt, err := p.worker.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for worker: %w", err)
	}

	p.setState(Terminated)
	s.metrics.WorkerUp.Set(0)
	log.Info("worker stopped", zap.Stringer("exit", evt))

	return nil
}

func (s *ProcessSupervisor) KillDescendants(p *WorkerProcess) {
	if p == nil || p.Pid() == 0 {
		return
	}

	pid := p.Pid()
	log := s.log.With(zap.Int("pid", pid))

	children, err := s.tree.Children(pid)
	if err != nil {
		s.metrics.CleanupErrors.Inc()
		log.Warn("failed to list worker children", zap.Error(err))
		return
	}

	for _, child := range children {
		if err := s.tree.Kill(child); err != nil {
			s.metrics.CleanupErrors.Inc()
			log.Warn("failed to kill worker child", zap.Int("child", child), zap.Error(err))
			continue
		}

		s.metrics.DescendantsKilled.Inc()
		log.Debug("killed worker child", zap.Int("child", child))
	}
}

func (s *ProcessSupervisor) Current() *WorkerProcess {
	s.currentLock.Lock()
	defer s.currentLock.Unlock()

	return s.current
}

// observe reports a worker that exits without being stopped. The
// worker is not restarted, only the next qualifying change does so.
func (s *ProcessSupervisor) observe(p *WorkerProcess) {
	<-p.worker.Done()

	if !p.state.CompareAndSwap(int32(Running), int32(Terminated)) {
		// the worker is being stopped
		return
	}

	evt, _ := p.worker.Wait(context.Background())

	s.metrics.WorkerUp.Set(0)
	s.log.Error("worker exited unexpectedly",
		zap.Int("pid", p.Pid()),
		zap.Stringer("exit", evt),
	)
}

func defaultWorkerFactory(
	config worker.StartConfig,
	sink worker.Sink,
	log *zap.Logger,
) worker.Worker {
	return worker.NewProcessWorker(config, sink, log)
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
