package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/litespace/compositor/config"
	"github.com/litespace/compositor/handlers"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/middleware"
)

func ListenAndServe(ctx context.Context, cli config.Cli, h *handlers.CompositorHandlersCollection) error {
	router := NewCompositorAPIRouter(cli, h)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}

	log.LogNoRequestID(
		"Starting Compositor API!",
		"version", config.Version,
		"host", cli.HTTPAddress,
	)

	return serve(ctx, &server)
}

// serve runs the server until ctx is cancelled, then gives in-flight requests a few seconds to finish
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewCompositorAPIRouter(cli config.Cli, h *handlers.CompositorHandlersCollection) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()
	withAuth := middleware.IsAuthorized
	withCORS := middleware.AllowCORS()

	router.GlobalOPTIONS = middleware.Preflight()

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(h.Ok()))

	// Recording chunks, sent by the recorders while a session is live
	router.POST("/api/sessions/:session/chunks",
		withLogging(
			withCORS(
				withAuth(
					cli.APIToken,
					h.UploadChunk(),
				),
			),
		),
	)

	// Composition of a finished session
	router.POST("/api/sessions/:session/compose",
		withLogging(
			withAuth(
				cli.APIToken,
				h.Compose(),
			),
		),
	)
	router.GET("/api/sessions/:session/compose",
		withLogging(
			withAuth(
				cli.APIToken,
				h.CompositionStatus(),
			),
		),
	)

	return router
}
