package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/respawn/config"
	"github.com/lambda-feedback/respawn/config/schema"
	"github.com/lambda-feedback/respawn/internal/shell"
	"github.com/lambda-feedback/respawn/util/conf"
	"github.com/lambda-feedback/respawn/util/logging"
)

var (
	appName  = "respawn"
	appUsage = `Run a long-running worker process and restart it
whenever its source files or configuration change.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load the configuration from a json file.",
				Aliases: []string{"f"},
				EnvVars: []string{"RESPAWN_CONFIG"},
			},
			&cli.PathFlag{
				Name:    "env-file",
				Usage:   "load the configuration from a dotenv file.",
				EnvVars: []string{"RESPAWN_ENV_FILE"},
			},
			// worker flags
			&cli.StringFlag{
				Name:     "command",
				Usage:    "the shell command that starts the worker process.",
				Aliases:  []string{"c"},
				Category: "worker",
				EnvVars:  []string{"RESPAWN_COMMAND"},
			},
			&cli.BoolFlag{
				Name:     "without-tty",
				Usage:    "do not attach the worker to the terminal, forward its output instead.",
				Category: "worker",
				EnvVars:  []string{"RESPAWN_WITHOUT_TTY"},
			},
			&cli.DurationFlag{
				Name:     "grace-period",
				Usage:    "the worker has to stay alive this long after start.",
				Category: "worker",
				EnvVars:  []string{"RESPAWN_GRACE_PERIOD"},
			},
			&cli.StringFlag{
				Name:     "stop-signal",
				Usage:    "the signal that stops the worker on restart.",
				Category: "worker",
				EnvVars:  []string{"RESPAWN_STOP_SIGNAL"},
			},
			// watch flags
			&cli.StringSliceFlag{
				Name:     "path",
				Usage:    "a file or directory to watch. May be repeated.",
				Aliases:  []string{"p"},
				Category: "watch",
				EnvVars:  []string{"RESPAWN_PATHS"},
			},
			&cli.StringSliceFlag{
				Name:     "ext",
				Usage:    "a source file extension that triggers a restart. May be repeated.",
				Aliases:  []string{"e"},
				Category: "watch",
				EnvVars:  []string{"RESPAWN_EXTENSIONS"},
			},
			// metrics flags
			&cli.IntFlag{
				Name:     "metrics-port",
				Usage:    "serve prometheus metrics on this port. Disabled if 0.",
				Category: "metrics",
				EnvVars:  []string{"METRICS_PORT"},
			},
			&cli.StringFlag{
				Name:     "metrics-host",
				Usage:    "the host to serve metrics on.",
				Category: "metrics",
				EnvVars:  []string{"METRICS_HOST"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using defaults, files, env and flags
			cfg, err := parseConfig(ctx, log)
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		Action: watchAction,
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
	}
)

// cliConfigMap maps flag names to config keys. Flags mapped to an
// empty key only control how the config is loaded.
var cliConfigMap = map[string]string{
	"config":       "",
	"env-file":     "",
	"log-level":    "log_level",
	"log-format":   "log_format",
	"command":      "supervisor.command",
	"without-tty":  "supervisor.without_tty",
	"grace-period": "supervisor.grace_period",
	"stop-signal":  "supervisor.stop_signal",
	"path":         "watch.paths",
	"ext":          "watch.extensions",
	"metrics-port": "metrics.port",
	"metrics-host": "metrics.host",
}

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	exitCode := shell.ExitCode(err)

	// if app exited cleanly, return
	if exitCode == 0 {
		return 0
	}

	fmt.Printf("exit error: %s\n", err.Error())

	sentry.CaptureException(err)

	return exitCode
}

func parseConfig(ctx *cli.Context, log *zap.Logger) (config.Config, error) {
	validator, err := schema.New()
	if err != nil {
		return config.Config{}, err
	}

	return conf.Parse[config.Config](conf.ParseOptions{
		Cli:           ctx,
		CliMap:        cliConfigMap,
		Defaults:      config.DefaultConfig,
		EnvPrefix:     config.EnvPrefix,
		FileName:      ctx.Path("config"),
		FileValidator: validator,
		EnvFileName:   ctx.Path("env-file"),
		Log:           log,
	})
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
