// Package controlapi exposes a *proxy.Proxy over HTTP: a REST surface
// for lifecycle and filter control, a WebSocket event feed, and a
// Prometheus exposition endpoint. It is the single source of truth
// for the Control API's transport — adding an endpoint means adding
// one line in this file, nothing else.
package controlapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/metrics"
	"github.com/incendiarybean/proxy-address-blocker/proxy"
)

// Dependencies groups everything the router and its handlers need.
// Passing one struct keeps NewRouter's signature stable as the surface
// grows.
type Dependencies struct {
	Proxy         *proxy.Proxy
	Logger        *logger.Logger
	Metrics       *metrics.Registry
	Hub           *Hub
	AllowedOrigin string
}

// NewRouter constructs the chi multiplexer, attaches middleware,
// builds the handlers, and registers every route from the Control HTTP
// surface. It returns a plain http.Handler so main.go carries no chi
// import of its own.
func NewRouter(deps Dependencies) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(deps.AllowedOrigin))

	proxyHandler := NewProxyHandler(deps.Proxy, deps.Logger)

	router.Get("/health", Health)

	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}

	if deps.Hub != nil {
		router.Get("/ws/events", deps.Hub.ServeHTTP)
	}

	router.Route("/api/proxy", func(apiRouter chi.Router) {
		apiRouter.Post("/run", proxyHandler.Run)
		apiRouter.Post("/stop", proxyHandler.Stop)
		apiRouter.Get("/status", proxyHandler.Status)
		apiRouter.Get("/requests", proxyHandler.Requests)
		apiRouter.Get("/filter", proxyHandler.Filter)
		apiRouter.Post("/filter/enabled", proxyHandler.ToggleFilterEnabled)
		apiRouter.Post("/filter/polarity", proxyHandler.ToggleFilterPolarity)
		apiRouter.Post("/filter/list", proxyHandler.UpdateFilterList)
		apiRouter.Put("/filter/list/{index}", proxyHandler.UpdateFilterListItem)
		apiRouter.Put("/filter/list", proxyHandler.SetFilterList)
	})

	return router
}

// corsMiddleware adds the headers needed for the out-of-scope GUI,
// which is expected to run on a different origin (a dev server or a
// packaged Electron/webview shell) than the Control API it talks to.
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
