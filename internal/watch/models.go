package watch

import (
	"context"
	"errors"

	"github.com/fsnotify/fsnotify"
)

var (
	ErrNoPaths      = errors.New("no paths to watch")
	ErrPathNotExist = errors.New("path does not exist")
)

// Kind is the kind of a change event.
type Kind string

const (
	Create Kind = "create"
	Write  Kind = "write"
	Remove Kind = "remove"
	Rename Kind = "rename"
	Chmod  Kind = "chmod"
)

// Event is a change observed at or below a watched path.
type Event struct {
	Kind Kind

	// Path is the absolute path of the changed file or directory
	Path string
}

// Subscriber subscribes to change events for a set of paths.
type Subscriber interface {
	// Subscribe starts watching paths. The returned channel delivers
	// events in order and is closed once ctx is done.
	Subscribe(ctx context.Context, paths []string) (<-chan Event, error)
}

type Config struct {
	// Ignore is a list of base name glob patterns. Matching files are
	// dropped, matching directories are not descended into.
	Ignore []string `conf:"ignore"`

	// BufferSize is the capacity of the event channel.
	BufferSize int `conf:"buffer_size"`
}

// convertOp maps an fsnotify op to an event kind. Ops with multiple
// bits set report the most significant change.
func convertOp(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return Remove, true
	case op.Has(fsnotify.Rename):
		return Rename, true
	case op.Has(fsnotify.Create):
		return Create, true
	case op.Has(fsnotify.Write):
		return Write, true
	case op.Has(fsnotify.Chmod):
		return Chmod, true
	}

	return "", false
}
