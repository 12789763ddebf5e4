package controller

import (
	"errors"

	"github.com/lambda-feedback/respawn/internal/watch"
	"github.com/lambda-feedback/respawn/util/conf"
)

var (
	ErrAlreadyStarted = errors.New("controller already started")
	ErrNotRunning     = errors.New("controller is not running")
	ErrWatchClosed    = errors.New("watch subscription closed")
)

type State int32

const (
	Starting State = iota
	Running
	Restarting
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Config struct {
	// Paths are the files and directories to watch.
	Paths []string `conf:"paths"`

	// Extensions are the source file extensions that trigger a restart.
	Extensions []string `conf:"extensions"`

	// Subscription configures the filesystem watch.
	Subscription watch.Config `conf:",squash"`
}

var DefaultConfig = conf.DefaultConfig{
	"extensions":  []string{".php"},
	"ignore":      []string{".git", "node_modules"},
	"buffer_size": 100,
}
