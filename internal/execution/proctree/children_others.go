//go:build !linux

package proctree

import (
	"github.com/shirou/gopsutil/process"
)

// listChildren falls back to gopsutil, which shells out
// to pgrep on some platforms.
func listChildren(pid int) ([]int, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}

	procs, err := p.Children()
	if err == process.ErrorNoChildren {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	children := make([]int, 0, len(procs))
	for _, child := range procs {
		children = append(children, int(child.Pid))
	}

	return children, nil
}
