// Package logging carries the zap logger through contexts and fx modules.
package logging

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type loggerKey struct{}

var ErrNoLoggerInContext = errors.New("no logger in context")

func ContextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

func LoggerFromContext(ctx context.Context) (*zap.Logger, error) {
	if log, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return log, nil
	}

	return nil, ErrNoLoggerInContext
}

// DecorateLogger names the logger for every component of an fx module.
func DecorateLogger(name string) fx.Option {
	return fx.Decorate(func(log *zap.Logger) *zap.Logger {
		return log.Named(name)
	})
}
