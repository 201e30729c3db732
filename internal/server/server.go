// Package server wires the command center HTTP and gRPC surfaces together.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/api"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/catalog"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/config"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/identity"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/journal"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/metrics"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/middleware"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/socket"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/store"
	"github.com/oguzhaangumuss/zer0gravis-command-center/web"
)

// UpstreamService is the gRPC health service name reporting oracle service reachability.
const UpstreamService = "oracle.gateway"

const shutdownTimeout = 10 * time.Second

// Oracle is the upstream dependency: collection plus health probing.
type Oracle interface {
	gateway.Gateway
	gateway.HealthChecker
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Repo    store.Repository
	Oracle  Oracle
	Journal journal.Logger
	Logger  *slog.Logger
}

// Server owns the session registry and the network listeners.
type Server struct {
	cfg      *config.Config
	deps     Deps
	registry *commandcenter.Registry
	api      *api.Handler
	sockets  *socket.SessionManager
	health   *health.Server
	handler  http.Handler
}

// New builds a server from cfg and deps.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Journal == nil {
		deps.Journal = journal.Noop{}
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		sockets: socket.NewSessionManager(),
		health:  health.NewServer(),
	}

	s.registry = commandcenter.NewRegistry(func(userID, sessionID string) (*commandcenter.Controller, error) {
		cc := commandcenter.Config{
			Gateway:   deps.Oracle,
			Journal:   deps.Journal,
			Consensus: cfg.ConsensusMethod,
			UserID:    userID,
			SessionID: sessionID,
			Logger:    deps.Logger,
		}
		if deps.Repo != nil {
			cc.Auditor = deps.Repo
		}
		return commandcenter.New(cc)
	})

	s.api = api.NewHandler(s.registry, catalog.Default(), deps.Repo, deps.Oracle, api.Options{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		MaxRequestBody:    cfg.MaxRequestBody,
		SSEKeepalive:      cfg.SSEKeepalive,
		SSERetryDelay:     cfg.SSERetryDelay,
	})
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the session registry.
func (s *Server) Registry() *commandcenter.Registry {
	return s.registry
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/livez"))
	r.Use(middleware.CORS(s.allowedOrigins()))

	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(s.cfg.IsDevelopment()))
		s.api.RegisterRoutes(r)
		r.Get("/ws/conversation", socket.NewHandler(s.registry, s.sockets, s.cfg.FrontendURL, s.cfg.IsDevelopment()).ServeHTTP)
	})

	r.Handle("/*", web.SPAHandler())
	return r
}

func (s *Server) allowedOrigins() []string {
	if s.cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{s.cfg.FrontendURL}
}

// probe sets the gRPC health status from the database and upstream at startup.
func (s *Server) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	overall := healthpb.HealthCheckResponse_SERVING
	if s.deps.Repo != nil {
		if err := s.deps.Repo.Ping(ctx); err != nil {
			s.deps.Logger.Error("Database health check failed", "error", err)
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", overall)

	upstream := healthpb.HealthCheckResponse_SERVING
	status, err := s.deps.Oracle.Health(ctx)
	if err != nil || !status.Healthy() {
		s.deps.Logger.Warn("Oracle service not ready at startup", "error", err)
		upstream = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(UpstreamService, upstream)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.probe(ctx)

	commandcenter.StartTTLWorker(ctx, s.registry, s.deps.Repo, commandcenter.TTLConfig{
		Interval:  s.cfg.SweepInterval,
		IdleTTL:   s.cfg.SessionIdleTTL,
		Retention: s.cfg.QueryRetention,
	}, func(c *commandcenter.Controller) {
		s.sockets.CloseSession(c.UserID(), c.SessionID())
	})

	// Streams derive from baseCtx so Shutdown can end them instead of waiting them out.
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE and WebSocket streams stay open
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if s.cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", s.cfg.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		grpcListener = lis
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, s.health)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.deps.Logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			s.deps.Logger.Info("gRPC health listening", "addr", grpcListener.Addr().String())
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc health server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.deps.Logger.Info("Shutting down gracefully...")
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if err := s.registry.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain conversations: %w", err))
		}
		s.api.Close()
		return errors.Join(errs...)
	})

	return g.Wait()
}
