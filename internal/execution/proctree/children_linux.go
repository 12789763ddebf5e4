//go:build linux

package proctree

import (
	"errors"
	"os"

	"github.com/prometheus/procfs"
)

// listChildren scans /proc for processes whose parent is pid.
func listChildren(pid int) ([]int, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}

	procs, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}

	var children []int
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// the process exited while scanning
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}

		if stat.PPID == pid {
			children = append(children, p.PID)
		}
	}

	return children, nil
}
