package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int
}

func (e ExitEvent) String() string {
	if e.Signal != nil {
		return fmt.Sprintf("signal %s", syscall.Signal(*e.Signal))
	}

	if e.Code != nil {
		return fmt.Sprintf("exit code %d", *e.Code)
	}

	return "unknown exit status"
}

type Worker interface {
	// Start launches the worker process. It does not wait for the
	// process to exit.
	Start(context.Context) error

	// Signal sends a signal to the worker process. It returns
	// os.ErrProcessDone if the process has already exited.
	Signal(os.Signal) error

	// Wait blocks until the worker process exited or the context is done.
	Wait(context.Context) (ExitEvent, error)

	// Done returns a channel that is closed once the process exited.
	Done() <-chan struct{}

	// Alive reports whether the process was started and did not exit yet.
	Alive() bool

	// Pid returns the process id, or 0 if the worker was not started.
	Pid() int
}

type ProcessWorker struct {
	config StartConfig
	sink   Sink

	processLock sync.Mutex
	process     *proc

	exited    chan struct{}
	exitEvent ExitEvent

	log *zap.Logger
}

var _ Worker = (*ProcessWorker)(nil)

// NewProcessWorker creates a worker for the given start config. Output
// of the worker is forwarded to sink unless the worker is attached to
// the terminal. A nil sink discards the output.
func NewProcessWorker(config StartConfig, sink Sink, log *zap.Logger) *ProcessWorker {
	if sink == nil {
		sink = SinkFunc(func(Stream, []byte) {})
	}

	return &ProcessWorker{
		config: config,
		sink:   sink,
		exited: make(chan struct{}),
		log:    log.Named("worker"),
	}
}

// Start starts the worker process.
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.log.With(
		zap.String("command", w.config.Command),
		zap.String("shell", w.config.Shell),
		zap.String("cwd", w.config.Cwd),
		zap.Bool("tty", w.config.Tty),
	).Debug("starting worker process")

	if w.config.Command == "" {
		return ErrInvalidCommand
	}

	// synchronize access to the process
	w.processLock.Lock()
	defer w.processLock.Unlock()

	// return if the worker is already started
	if w.process != nil {
		return ErrWorkerAlreadyStarted
	}

	// exit early if the context is already cancelled
	if ctx.Err() != nil {
		return fmt.Errorf("failed to start process: %w", ctx.Err())
	}

	process, err := startProc(
		w.config,
		&streamWriter{stream: Stdout, sink: w.sink},
		&streamWriter{stream: Stderr, sink: w.sink},
		w.log,
	)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	w.process = process

	// record the exit status once the process terminated
	go func() {
		<-process.Done()

		w.exitEvent = getExitEvent(process)

		close(w.exited)
	}()

	return nil
}

// Signal sends a signal to the worker process.
func (w *ProcessWorker) Signal(sig os.Signal) error {
	process := w.acquireProcess()
	if process == nil {
		return ErrWorkerNotStarted
	}

	return process.Signal(sig)
}

// Wait waits for the worker process to exit. The method returns an
// ExitEvent describing how the process exited. If the process has
// already terminated, the method returns immediately.
func (w *ProcessWorker) Wait(ctx context.Context) (ExitEvent, error) {
	if w.acquireProcess() == nil {
		return ExitEvent{}, ErrWorkerNotStarted
	}

	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-w.exited:
		return w.exitEvent, nil
	}
}

func (w *ProcessWorker) Done() <-chan struct{} {
	return w.exited
}

func (w *ProcessWorker) Alive() bool {
	if w.acquireProcess() == nil {
		return false
	}

	select {
	case <-w.exited:
		return false
	default:
		return true
	}
}

func (w *ProcessWorker) Pid() int {
	if process := w.acquireProcess(); process != nil {
		return process.pid
	}

	return 0
}

// acquireProcess returns the worker process. The method is thread-safe.
func (w *ProcessWorker) acquireProcess() *proc {
	w.processLock.Lock()
	defer w.processLock.Unlock()

	return w.process
}

// MARK: - Helpers

func getExitEvent(p *proc) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	// the process state is also set if only draining the output failed
	if state := p.cmd.ProcessState; state != nil {
		if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			// the process was terminated by a signal
			cell = int(status.Signal())
			signo = &cell
		} else if code := state.ExitCode(); code >= 0 {
			cell = code
			exitStatus = &cell
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
	}
}
