// Package api serves the ledger over JSON HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bakehouse/internal/config"
	"github.com/roach88/bakehouse/internal/metrics"
)

// Runner is a background loop run alongside the HTTP server.
type Runner interface {
	Run(ctx context.Context) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Services  Services
	Resolver  ActorResolver
	Health    Pinger
	Metrics   *metrics.Metrics
	Scheduler Runner
	Log       *zap.Logger
}

// Server is the HTTP API plus the count scheduler.
type Server struct {
	cfg     config.HTTP
	handler http.Handler
	limiter *rateLimiter
	sched   Runner
	log     *zap.Logger
}

// New builds the router.
func New(cfg config.HTTP, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("api")
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	h := &handlers{svc: deps.Services, resolver: deps.Resolver, health: deps.Health, log: log}
	limiter := newRateLimiter(cfg.RateLimit, cfg.RateBurst, m.RateLimited)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(m.Instrument)
	r.Use(requestLogger(log))

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", m.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Use(h.tenant)
		r.Use(limiter.Handler)
		h.routes(r)
	})

	return &Server{cfg: cfg, handler: r, limiter: limiter, sched: deps.Scheduler, log: log}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln and the scheduler, if any, until ctx is
// done or either fails. The server drains for at most ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if s.sched != nil {
		g.Go(func() error {
			return s.sched.Run(gctx)
		})
	}
	return g.Wait()
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
