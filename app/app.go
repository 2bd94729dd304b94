// Package app wires the router, server, and observability pieces
// into a single application instance, the way the teacher's app
// package once wired a raw core.Engine, generalized to the
// router+pipeline+server stack.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/meridian/config"
	"github.com/searchktools/meridian/observability"
	"github.com/searchktools/meridian/pipeline"
	"github.com/searchktools/meridian/router"
	"github.com/searchktools/meridian/server"
)

// App composes a Config, a Router, and the Server that dispatches
// through it; Handle registers routes the same way server.Handle does
// but also wraps them in this app's shared Monitor.
type App struct {
	cfg     *config.Config
	router  *router.Router
	monitor *observability.Monitor
	srv     *server.Server
}

// New creates an App with its Server ready for route registration.
func New(cfg *config.Config) *App {
	a := &App{
		cfg:     cfg,
		router:  router.New(),
		monitor: observability.NewMonitor(),
	}
	a.srv = server.New(server.Config{
		Addr:                 fmt.Sprintf(":%d", cfg.Port),
		Router:               a.router,
		Monitor:              a.monitor,
		RequestTimeoutMillis: cfg.ResponseTimeoutMillis,
		MaxRequestLength:     cfg.MaxResponseLength,
	})
	return a
}

// Router returns the router instance, for callers that need direct
// access to PathMatcher construction or route introspection.
func (a *App) Router() *router.Router { return a.router }

// Monitor returns the per-route performance monitor backing this
// app's server, for callers that want to inspect Stats() directly
// (e.g. to expose a diagnostics endpoint).
func (a *App) Monitor() *observability.Monitor { return a.monitor }

// Handle registers handler at matcher, composing perRoute decorators
// the same way server.Server.Handle does.
func (a *App) Handle(matcher router.PathMatcher, methods []string, consumes, produces []router.MediaType, handler server.Handler, perRoute ...pipeline.Declaration) error {
	return a.srv.Handle(matcher, methods, consumes, produces, handler, perRoute...)
}

// Run starts the server, blocking until a shutdown signal arrives or
// the server fails. SIGINT/SIGTERM trigger a graceful drain with a
// 10-second deadline.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%d [%s]", a.cfg.Port, a.cfg.Env)
		errCh <- a.srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("signal received: %v, draining connections", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.srv.Shutdown(ctx)
	}
}

// Close shuts the server down immediately, dropping active connections.
func (a *App) Close() error {
	return a.srv.Close()
}
