package server

import (
	"net/http"

	"go.uber.org/fx"
)

// Route is a handler mounted on the server mux at Pattern.
type Route struct {
	Pattern string
	Handler http.Handler
}

type RouteResult struct {
	fx.Out

	Route *Route `group:"routes"`
}

// AsRoute provides handler to the server module under pattern.
func AsRoute(pattern string, handler http.Handler) RouteResult {
	return RouteResult{
		Route: &Route{Pattern: pattern, Handler: handler},
	}
}

// Module serves all provided routes on the configured address for the
// lifetime of the application.
func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		fx.Supply(config),
		fx.Provide(NewLifecycleServer),
		// the server has no dependents, force its construction
		fx.Invoke(func(*HttpServer) {}),
	)
}
