package worker

import (
	"fmt"
	"io"
)

var (
	ErrInvalidCommand       = fmt.Errorf("invalid command")
	ErrWorkerNotStarted     = fmt.Errorf("worker not started")
	ErrWorkerAlreadyStarted = fmt.Errorf("worker already started")
)

// DefaultShell is used to run the command if StartConfig.Shell is empty.
const DefaultShell = "/bin/sh"

type StartConfig struct {
	// Command is the shell command line used verbatim to start the worker
	Command string `conf:"command"`

	// Shell is the shell that interprets Command, invoked as `Shell -c Command`
	Shell string `conf:"shell"`

	// Cwd is the working directory in which
	// the command should be executed
	Cwd string `conf:"cwd"`

	// Env is a map of additional environment variables
	// to set when running the command
	Env map[string]string `conf:"env"`

	// Tty attaches the worker to the controlling terminal
	// of the current process instead of piping its output
	Tty bool `conf:"-"`
}

// Stream identifies an output stream of the worker.
type Stream int

const (
	Stdout Stream = iota + 1
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Sink receives the output of a worker. Write is called once per chunk
// as soon as it was read. Chunks of one stream arrive in order, there
// is no ordering guarantee across streams.
type Sink interface {
	Write(stream Stream, chunk []byte)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(stream Stream, chunk []byte)

func (f SinkFunc) Write(stream Stream, chunk []byte) {
	f(stream, chunk)
}

type writerSink struct {
	stdout io.Writer
	stderr io.Writer
}

// NewWriterSink returns a sink that copies stdout and stderr
// chunks to the given writers.
func NewWriterSink(stdout, stderr io.Writer) Sink {
	return &writerSink{stdout: stdout, stderr: stderr}
}

func (s *writerSink) Write(stream Stream, chunk []byte) {
	if stream == Stderr {
		_, _ = s.stderr.Write(chunk)
		return
	}

	_, _ = s.stdout.Write(chunk)
}

// streamWriter forwards everything written to it to a sink.
type streamWriter struct {
	stream Stream
	sink   Sink
}

func (w *streamWriter) Write(p []byte) (int, error) {
	// the caller may reuse p after Write returns
	chunk := make([]byte, len(p))
	copy(chunk, p)

	w.sink.Write(w.stream, chunk)

	return len(p), nil
}
