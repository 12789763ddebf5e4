package supervisor

import (
	"errors"
	"fmt"
	"os"

	"github.com/lambda-feedback/respawn/internal/execution/worker"
)

var (
	ErrWorkerNotStarted     = errors.New("worker not started")
	ErrWorkerAlreadyStarted = errors.New("worker already started")
	ErrUnknownSignal        = errors.New("unknown signal")
)

// State is the lifecycle state of a worker process.
type State int32

const (
	NotStarted State = iota
	Running
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reason describes why a worker failed to start.
type Reason string

const (
	// ImmediateExit means the worker exited within the grace period.
	ImmediateExit Reason = "immediate_exit"

	// LaunchFailed means the worker process could not be created at all.
	LaunchFailed Reason = "launch_failed"
)

// StartError is returned if the worker could not be started.
type StartError struct {
	Reason Reason

	// Exit is the exit status of the worker, set for ImmediateExit
	Exit worker.ExitEvent

	Err error
}

func (e *StartError) Error() string {
	switch e.Reason {
	case ImmediateExit:
		return fmt.Sprintf("worker exited immediately after start (%s)", e.Exit)
	default:
		return fmt.Sprintf("failed to launch worker: %v", e.Err)
	}
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// SignalForwardError is reported if a signal could not be delivered
// to the worker. It is never fatal.
type SignalForwardError struct {
	Signal os.Signal
	Pid    int
	Err    error
}

func (e *SignalForwardError) Error() string {
	return fmt.Sprintf("failed to send %s to worker %d: %v", e.Signal, e.Pid, e.Err)
}

func (e *SignalForwardError) Unwrap() error {
	return e.Err
}
