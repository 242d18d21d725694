// Package server assembles the toolgate HTTP server from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/authhttp"
	"github.com/jonwraymond/toolgate/config"
	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/tools"
)

// APIKeyHeader carries static secrets for clients that cannot send a
// Bearer Authorization header.
const APIKeyHeader = "X-API-Key"

// Option configures a Server.
type Option func(*Server)

// WithObserver replaces the observer built from the observe configuration.
func WithObserver(obs observe.Observer) Option {
	return func(s *Server) { s.observer = obs }
}

// WithAuthOptions appends options passed to auth.Build.
func WithAuthOptions(opts ...auth.Option) Option {
	return func(s *Server) { s.authOpts = append(s.authOpts, opts...) }
}

// Server is a configured toolgate server.
type Server struct {
	cfg      *config.Config
	observer observe.Observer
	authOpts []auth.Option
	logger   observe.Logger
	stack    *auth.Stack
	health   *health.Aggregator
	handler  http.Handler
}

// New builds the observer, the authentication stack and the routes.
// Operation scopes default to the weather tool scopes when none are
// configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.observer == nil {
		obs, err := observe.NewObserver(ctx, cfg.Observe)
		if err != nil {
			return nil, fmt.Errorf("server: observer: %w", err)
		}
		s.observer = obs
	}
	s.logger = s.observer.Logger()

	authMetrics, err := observe.NewAuthMetrics(s.observer.Meter())
	if err != nil {
		return nil, fmt.Errorf("server: auth metrics: %w", err)
	}

	authCfg := cfg.Auth
	if len(authCfg.OperationScopes) == 0 {
		authCfg.OperationScopes = tools.DefaultOperationScopes()
	} else {
		authCfg.OperationScopes = maps.Clone(authCfg.OperationScopes)
	}
	authOpts := append([]auth.Option{
		auth.WithLogger(s.logger),
		auth.WithMetrics(authMetrics),
		auth.WithTracer(s.observer.Tracer()),
	}, s.authOpts...)

	s.stack, err = auth.Build(ctx, authCfg, authOpts...)
	if err != nil {
		return nil, err
	}

	s.health = health.NewAggregator(cfg.Server.HealthTimeout)
	s.health.Register(health.NewCheckerFunc("auth", s.checkAuth))
	for _, c := range s.stack.Keyring.Caches() {
		s.health.Register(c)
	}

	mw, err := observe.MiddlewareFromObserver(s.observer)
	if err != nil {
		return nil, fmt.Errorf("server: tool middleware: %w", err)
	}
	invoker := tools.NewInvoker(tools.NewWeatherRegistry(),
		tools.WithResultCache(tools.NewResultCache(cfg.Tools.CacheTTL)),
		tools.WithMiddleware(mw),
	)
	s.handler = s.routes(invoker)
	return s, nil
}

func (s *Server) routes(invoker *tools.Invoker) http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, s.health)

	meta := authhttp.NewResourceMetadata(s.cfg.Server.ResourceURL, s.cfg.Server.Name, s.stack)
	authhttp.RegisterMetadata(mux, meta)

	if s.cfg.Observe.Metrics.Enabled && s.cfg.Observe.Metrics.Exporter == "prometheus" {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	httpOpts := []authhttp.Option{
		authhttp.WithRealm(s.cfg.Server.Name),
		authhttp.WithResourceMetadataURL(strings.TrimRight(s.cfg.Server.ResourceURL, "/") + authhttp.MetadataPath),
		authhttp.WithAPIKeyHeader(APIKeyHeader),
		authhttp.WithLogger(s.logger),
	}
	h := tools.NewHandler(invoker,
		tools.WithScopeLookup(s.stack.Authorizer.RequiredScope),
		tools.WithHandlerLogger(s.logger),
	)
	mux.Handle("POST /tools/{name}",
		authhttp.New(s.stack.Guard, authhttp.PathValueOperation("name"), httpOpts...).Wrap(h.Invoke()))
	mux.Handle("GET /tools",
		authhttp.New(s.stack.Guard, authhttp.StaticOperation(tools.ListOperation), httpOpts...).Wrap(h.List()))

	return authhttp.RequestID(mux)
}

func (s *Server) checkAuth(context.Context) health.Result {
	if s.stack.Guard.Disabled() {
		return health.Degraded("authentication disabled")
	}
	return health.Healthy("authentication enabled").WithDetails(map[string]any{
		"verifiers": s.stack.Composite.Verifiers(),
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Stack returns the authentication stack.
func (s *Server) Stack() *auth.Stack { return s.stack }

// Health returns the health aggregator.
func (s *Server) Health() *health.Aggregator { return s.health }

// Run warms the key sets, serves HTTP on the configured address and keeps
// the key sets refreshed until ctx is done, then shuts down gracefully.
// A key set that cannot be warmed is logged; requests for that issuer fail
// until a later refresh succeeds.
func (s *Server) Run(ctx context.Context) error {
	if err := s.stack.Keyring.Warm(ctx); err != nil {
		s.logger.Warn(ctx, "key set warm-up incomplete", observe.F("error", err.Error()))
	}

	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.stack.Keyring.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Info(gctx, "listening", observe.F("addr", srv.Addr), observe.F("auth_disabled", s.stack.Guard.Disabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close flushes and stops telemetry.
func (s *Server) Close(ctx context.Context) error {
	return s.observer.Shutdown(ctx)
}
