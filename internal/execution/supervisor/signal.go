package supervisor

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

var signals = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
}

// ParseSignal parses a signal name such as "SIGTERM", "term" or "15".
func ParseSignal(name string) (syscall.Signal, error) {
	normalized := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG")

	if sig, ok := signals[normalized]; ok {
		return sig, nil
	}

	if num, err := strconv.Atoi(normalized); err == nil && num > 0 {
		return syscall.Signal(num), nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}
