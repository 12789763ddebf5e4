package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/lambda-feedback/respawn/internal/metrics"
	"github.com/lambda-feedback/respawn/internal/server"
	"github.com/lambda-feedback/respawn/util/logging"
)

// Module provides the metrics collectors. If the config enables it,
// the metrics are served on /metrics.
func Module(config server.HttpConfig) fx.Option {
	options := []fx.Option{
		// rename logger for module
		logging.DecorateLogger("metrics"),
		// provide registry and collectors
		fx.Provide(NewRegistry),
		fx.Provide(NewMetrics),
	}

	if config.Enabled() {
		options = append(options,
			// provide metrics handler
			fx.Provide(NewHandler),
			// provide server
			server.Module(config),
		)
	}

	return fx.Module("metrics", options...)
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

func NewMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func NewHandler(reg *prometheus.Registry) server.RouteResult {
	return server.AsRoute("/metrics", metrics.Handler(reg))
}
