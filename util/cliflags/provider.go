// Package cliflags implements a koanf.Provider that takes a
// cli.Context and provides its flags to koanf.
package cliflags

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/maps"
	"github.com/urfave/cli/v2"
)

// CLIFlags implements a raw map[string]any provider.
type CLIFlags struct {
	mp map[string]any
}

// Provider returns a CLI Provider that takes a CLI context. Only flags
// that were explicitly set (on the command line or through their env
// vars) are provided, so unset flags never shadow lower config layers.
//
// cb maps a flag name to its config key. Flags mapped to an empty key
// are skipped. If a delim is provided, the keys are unflattened by delim.
func Provider(ctx *cli.Context, delim string, cb func(string) string) *CLIFlags {
	// index flags by all their names, a flag set through an
	// alias is reported under that alias
	flags := map[string]cli.Flag{}
	addFlags := func(list []cli.Flag) {
		for _, flag := range list {
			for _, name := range flag.Names() {
				flags[name] = flag
			}
		}
	}

	addFlags(ctx.App.VisibleFlags())
	if ctx.Command != nil {
		addFlags(ctx.Command.VisibleFlags())
	}

	mp := make(map[string]any)
	seen := make(map[string]bool)

	for _, setName := range ctx.FlagNames() {
		flag, ok := flags[setName]
		if !ok {
			continue
		}

		flagName := flag.Names()[0]
		if seen[flagName] {
			continue
		}
		seen[flagName] = true

		value, err := getFlagValue(ctx, flag)
		if err != nil {
			continue
		}

		var mapName = flagName
		if cb != nil {
			mapName = cb(flagName)
		}
		if mapName == "" {
			continue
		}
		mp[mapName] = value
	}

	// unflatten the map if a delimiter is provided
	// this can happen when `cb` returns a nested key
	if delim != "" {
		mp = maps.Unflatten(mp, delim)
	}

	return &CLIFlags{mp: mp}
}

// ReadBytes is not supported by the cli provider.
func (e *CLIFlags) ReadBytes() ([]byte, error) {
	return nil, errors.New("cli provider does not support this method")
}

// Read returns the loaded map[string]any.
func (e *CLIFlags) Read() (map[string]any, error) {
	return e.mp, nil
}

func getFlagValue(ctx *cli.Context, flag cli.Flag) (any, error) {
	name := flag.Names()[0]

	switch flag.(type) {
	case *cli.StringFlag:
		return ctx.String(name), nil
	case *cli.StringSliceFlag:
		return ctx.StringSlice(name), nil
	case *cli.PathFlag:
		return ctx.Path(name), nil
	case *cli.IntFlag:
		return ctx.Int(name), nil
	case *cli.IntSliceFlag:
		return ctx.IntSlice(name), nil
	case *cli.BoolFlag:
		return ctx.Bool(name), nil
	case *cli.DurationFlag:
		// koanf decodes durations from their string form
		return ctx.Duration(name).String(), nil
	}

	return nil, fmt.Errorf("unsupported flag type %T", flag)
}
