package util

import (
	"fmt"
	"strings"
)

// Must panics if err is set. Use it for values that are embedded in the
// binary, like the config schema.
func Must[V any](v V, err error) V {
	if err != nil {
		panic(fmt.Sprintf("util.Must: %v", err))
	}

	return v
}

// Truthy reports whether an env value enables a switch.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}

	return false
}
