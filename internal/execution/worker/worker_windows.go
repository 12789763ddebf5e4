package worker

import "os/exec"

// initCmd keeps the worker in our console, process groups are unix only.
func initCmd(cmd *exec.Cmd, tty bool) {}
