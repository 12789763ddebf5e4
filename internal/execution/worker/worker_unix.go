//go:build aix || darwin || dragonfly || freebsd || (js && wasm) || linux || nacl || netbsd || openbsd || solaris

package worker

import (
	"os/exec"
	"syscall"
)

func initCmd(cmd *exec.Cmd, tty bool) {
	// a worker attached to the terminal has to stay in the foreground
	// process group, otherwise reading from the terminal stops it
	if tty {
		return
	}

	// detach the worker from our process group, so that signals sent
	// to the terminal's group reach the worker only once, forwarded
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
