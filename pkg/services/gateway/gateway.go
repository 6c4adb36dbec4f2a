// Package gateway implements the "gateway" service: an HTTP listener that
// turns each configured route into a call through the hosting node.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/meshwork/internal/logging"
	httpadapter "github.com/aretw0/meshwork/pkg/adapters/http"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
)

// Name is the service name of the gateway.
const Name = "gateway"

// DefaultAddress is the listen address used when none is configured.
const DefaultAddress = ":3000"

// Service serves the route table over HTTP.
type Service struct {
	caller  ports.Caller
	address string
	routes  []domain.Route
	logger  *slog.Logger
	metrics http.Handler
	version string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan error
}

// Option configures the gateway.
type Option func(*Service)

// WithAddress sets the listen address; ":0" picks a free port.
func WithAddress(address string) Option {
	return func(s *Service) {
		s.address = address
	}
}

// WithRoutes replaces the default product routes.
func WithRoutes(routes []domain.Route) Option {
	return func(s *Service) {
		s.routes = routes
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Service) {
		s.metrics = h
	}
}

// WithVersion sets the version advertised in the OpenAPI document.
func WithVersion(version string) Option {
	return func(s *Service) {
		s.version = version
	}
}

// New creates the gateway. caller is normally the node hosting the service.
func New(caller ports.Caller, opts ...Option) *Service {
	s := &Service{
		caller:  caller,
		address: DefaultAddress,
		routes:  domain.DefaultRoutes(),
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Dependencies() []string {
	return nil
}

func (s *Service) Actions() []ports.ActionDef {
	return []ports.ActionDef{
		{Name: "listAliases", Handler: s.listAliases},
	}
}

// listAliases returns the route table.
func (s *Service) listAliases(ctx context.Context, call *domain.CallContext) (any, error) {
	routes := append([]domain.Route(nil), s.routes...)
	domain.SortRoutes(routes)
	return routes, nil
}

// Routes returns the configured routes.
func (s *Service) Routes() []domain.Route {
	return append([]domain.Route(nil), s.routes...)
}

// Handler returns the HTTP handler without starting a listener.
func (s *Service) Handler() http.Handler {
	opts := []httpadapter.Option{
		httpadapter.WithLogger(s.logger),
		httpadapter.WithVersion(s.version),
	}
	if s.metrics != nil {
		opts = append(opts, httpadapter.WithMetricsHandler(s.metrics))
	}
	return httpadapter.NewHandler(s.caller, s.routes, opts...)
}

// Start binds the listen address and serves in the background.
func (s *Service) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)

	s.mu.Lock()
	s.server = server
	s.listener = listener
	s.done = done
	s.mu.Unlock()

	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("gateway stopped serving", "err", err)
		}
		done <- err
	}()
	s.logger.Info("gateway listening", "addr", listener.Addr().String(), "routes", len(s.routes))
	return nil
}

// Addr returns the bound address once started, or "".
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down gracefully.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, done := s.server, s.done
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	return <-done
}
