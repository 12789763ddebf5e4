package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long output is drained after the process exited,
// e.g. when a stray descendant still holds the write end of a pipe.
const waitDelay = 2 * time.Second

type proc struct {
	cmd         *exec.Cmd
	pid         int
	termination chan struct{}
	err         error

	log *zap.Logger
}

func startProc(config StartConfig, stdout, stderr io.Writer, log *zap.Logger) (*proc, error) {
	shell := config.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.Command(shell, "-c", config.Command)

	if config.Env != nil {
		env := os.Environ()
		for k, v := range config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	if config.Tty {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		cmd.WaitDelay = waitDelay
	}

	initCmd(cmd, config.Tty)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	process := &proc{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		termination: make(chan struct{}),
		log:         log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits
		process.err = cmd.Wait()

		// report the termination to waiters
		close(process.termination)
	}()

	return process, nil
}

// Signal sends sig to the process. It returns os.ErrProcessDone
// if the process has already terminated.
func (p *proc) Signal(sig os.Signal) error {
	select {
	case <-p.termination:
		p.log.Debug("process already terminated")
		return os.ErrProcessDone
	default:
		// continue
	}

	p.log.Debug("sending signal", zap.Stringer("signal", sig))

	return p.cmd.Process.Signal(sig)
}

// Done returns a channel that is closed once the process terminated.
func (p *proc) Done() <-chan struct{} {
	return p.termination
}

// Wait blocks until the process terminated or ctx is done.
// It returns the error reported by exec.Cmd.Wait.
func (p *proc) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.termination:
		return p.err
	}
}
