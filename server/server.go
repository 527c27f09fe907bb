// Package server assembles the HTTP router and runs it until shutdown
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/danceflow/danceflow/api"
	"github.com/danceflow/danceflow/config"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/logging"
	"github.com/danceflow/danceflow/middleware/auth"
)

// Options are the collaborators of the server
type Options struct {
	Config   config.ServerConfig
	Log      logrus.FieldLogger
	Resolver auth.Resolver

	// Routes mounts the application routes
	Routes func(chi.Router)

	// Hooks is drained on shutdown so after-hooks can finish
	Hooks *core.HookRunner

	// UploadsPath and Uploads serve locally stored images, e.g. "/uploads"
	UploadsPath string
	Uploads     http.FileSystem
}

// Server is the danceflow HTTP server
type Server struct {
	opts    Options
	log     logrus.FieldLogger
	handler http.Handler
}

// New builds the router
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	s := &Server{opts: opts, log: opts.Log}
	s.handler = s.router()
	return s
}

// Handler returns the assembled router
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Total-Count", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(s.opts.Resolver, s.log))

	r.NotFound(api.NotFoundHandler)
	r.MethodNotAllowed(api.MethodNotAllowedHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.opts.Uploads != nil && strings.HasPrefix(s.opts.UploadsPath, "/") {
		prefix := strings.TrimRight(s.opts.UploadsPath, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(s.opts.Uploads)))
	}

	if s.opts.Routes != nil {
		s.opts.Routes(r)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits
// for in-flight after-hooks
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.opts.Config
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithField("addr", ln.Addr().String()).Info("server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		s.log.Info("shutting down")
		var result *multierror.Error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutting down http: %w", err))
		}
		if s.opts.Hooks != nil {
			if err := s.opts.Hooks.WaitContext(shutdownCtx); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	})
	return g.Wait()
}
