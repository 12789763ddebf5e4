// Package proctree queries and kills the direct children of a process.
package proctree

import (
	"fmt"

	"go.uber.org/zap"
)

// Tree enumerates and kills processes by pid.
type Tree interface {
	// Children returns the pids of the direct children of pid.
	Children(pid int) ([]int, error)

	// Kill unconditionally kills the process with the given pid.
	Kill(pid int) error
}

// CleanupError describes a failure to enumerate or kill a
// descendant process. It is never fatal to the caller.
type CleanupError struct {
	// Op is the failed operation, either "list" or "kill"
	Op string

	// Pid is the process the operation was applied to
	Pid int

	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("descendant cleanup: %s %d: %v", e.Op, e.Pid, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// ProcessTree queries the process table of the host.
type ProcessTree struct {
	log *zap.Logger
}

var _ Tree = (*ProcessTree)(nil)

func New(log *zap.Logger) *ProcessTree {
	return &ProcessTree{log: log.Named("proctree")}
}

func (t *ProcessTree) Children(pid int) ([]int, error) {
	children, err := listChildren(pid)
	if err != nil {
		return nil, &CleanupError{Op: "list", Pid: pid, Err: err}
	}

	t.log.Debug("listed children", zap.Int("pid", pid), zap.Ints("children", children))

	return children, nil
}

func (t *ProcessTree) Kill(pid int) error {
	if err := killProcess(pid); err != nil {
		return &CleanupError{Op: "kill", Pid: pid, Err: err}
	}

	return nil
}
