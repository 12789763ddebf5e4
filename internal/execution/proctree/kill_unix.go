//go:build !windows

package proctree

import "syscall"

func killProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}
