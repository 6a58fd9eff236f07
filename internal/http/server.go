package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/shivanshkc/signon/internal/config"
	"github.com/shivanshkc/signon/internal/handler"
	"github.com/shivanshkc/signon/internal/middleware"
)

// Server is the HTTP server of this application.
type Server struct {
	Config     config.Config
	Middleware middleware.Middleware
	Handler    *handler.Handler
	httpServer *http.Server
}

// Start sets up all the dependencies and routes on the server, and calls ListenAndServe on it.
func (s *Server) Start() {
	// Create the HTTP server.
	s.httpServer = &http.Server{
		Addr:              s.Config.HTTPServer.Addr,
		ReadHeaderTimeout: time.Minute,
		Handler:           s.getHandler(),
	}

	// Gracefully shut down upon interruption.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		slog.Info("interruption detected, gracefully shutting down the server")
		// Graceful shutdown.
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			slog.Error("failed to gracefully shutdown the server", "err", err)
		}
	}()

	slog.Info("starting http server", "name", s.Config.Application.Name, "addr", s.Config.HTTPServer.Addr)
	// Start the HTTP server.
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error in ListenAndServe call", "err", err)
		panic(err)
	}
}

// getHandler attaches middleware and REST methods to the server.
func (s *Server) getHandler() http.Handler {
	router := mux.NewRouter()

	// Attach middleware.
	router.Use(s.Middleware.Recovery)
	router.Use(s.Middleware.CORS)
	router.Use(s.Middleware.Security)
	router.Use(s.Middleware.AccessLogger)

	// Login flow routes, one set per configured provider.
	router.HandleFunc("/oauth2/authorization/{provider}", s.Handler.Authorization).Methods(http.MethodGet)
	router.HandleFunc("/oauth2/callback/{provider}", s.Handler.Callback).Methods(http.MethodGet)
	// The session resource accepts GET for parity with the other flow routes,
	// though browsers normally POST the WebAuthn assertion body.
	router.HandleFunc("/oauth2/session/{provider}", s.Handler.Session).
		Methods(http.MethodGet, http.MethodPost)

	// Endpoint to check the validity of a session. It can be used by a reverse
	// proxy to authenticate requests to other services.
	router.HandleFunc("/oauth2/check", s.Handler.Check).Methods(http.MethodGet, http.MethodHead)

	// Health check route.
	router.HandleFunc("/health", s.Handler.Health).Methods(http.MethodGet)

	// Enable profiling if configured.
	if s.Config.Application.PProf {
		s.addProfilingRoutes(router)
	}

	// Handle 404.
	router.PathPrefix("/").HandlerFunc(s.Handler.NotFound)

	return router
}

// addProfilingRoutes adds all the pprof routes to the router.
func (s *Server) addProfilingRoutes(router *mux.Router) {
	// Enable block profiling.
	runtime.SetBlockProfileRate(1)
	// Enable mutex profiling.
	runtime.SetMutexProfileFraction(1)

	// Manually add support for paths linked to by index page at /debug/pprof
	router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	router.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	router.Handle("/debug/pprof/block", pprof.Handler("block"))

	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	router.HandleFunc("/debug/pprof", pprof.Index)

	slog.Info("pprof endpoints available at: /debug/pprof")
}
