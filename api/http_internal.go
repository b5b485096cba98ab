package api

import (
	"context"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/litespace/compositor/config"
	"github.com/litespace/compositor/handlers"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func ListenAndServeInternal(ctx context.Context, cli config.Cli, h *handlers.CompositorHandlersCollection) error {
	router := NewCompositorAPIRouterInternal(h)
	server := http.Server{Addr: cli.HTTPInternalAddress, Handler: router}

	log.LogNoRequestID(
		"Starting Compositor internal API!",
		"version", config.Version,
		"host", cli.HTTPInternalAddress,
	)

	return serve(ctx, &server)
}

func NewCompositorAPIRouterInternal(h *handlers.CompositorHandlersCollection) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()

	router.GET("/ok", withLogging(h.Ok()))
	router.GET("/healthcheck", withLogging(h.Healthcheck()))

	// Prometheus scrape endpoint
	router.Handler("GET", "/metrics", promhttp.Handler())

	// Profiling
	router.GET("/debug/pprof/*item", profiling)

	return router
}

func profiling(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch strings.TrimPrefix(ps.ByName("item"), "/") {
	case "cmdline":
		pprof.Cmdline(w, r)
	case "profile":
		pprof.Profile(w, r)
	case "symbol":
		pprof.Symbol(w, r)
	case "trace":
		pprof.Trace(w, r)
	default:
		pprof.Index(w, r)
	}
}
