package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Server translates HTTP requests into action calls.
type Server struct {
	caller  ports.Caller
	routes  []domain.Route
	logger  *slog.Logger
	metrics http.Handler
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /openapi.json.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewHandler creates the gateway handler for routes. Every route becomes one
// call through caller.
func NewHandler(caller ports.Caller, routes []domain.Route, opts ...Option) http.Handler {
	s := &Server{
		caller:  caller,
		routes:  append([]domain.Route(nil), routes...),
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	for _, route := range s.routes {
		r.Method(route.Method, chiPattern(route.Path), s.actionHandler(route))
	}
	r.Get("/health", s.health)
	r.Get("/openapi.json", s.openAPI)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chiPattern converts "/api/products/:id" to "/api/products/{id}".
func chiPattern(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

func (s *Server) actionHandler(route domain.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := collectParams(r)
		if err != nil {
			s.writeError(w, r, route, err)
			return
		}

		result, err := s.caller.Call(r.Context(), route.Service, route.Action, params)
		if err != nil {
			s.writeError(w, r, route, err)
			return
		}
		writeJSON(w, http.StatusOK, result, s.logger)
	}
}

// collectParams flattens query values, then JSON body fields, then path
// parameters into one bag. Later sources win on conflicting keys.
func collectParams(r *http.Request) (domain.Params, error) {
	params := domain.Params{}
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			params[key] = values[0]
		} else {
			params[key] = values
		}
	}

	if r.Body != nil && r.Body != http.NoBody {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var body map[string]any
		switch err := dec.Decode(&body); {
		case errors.Is(err, io.EOF):
		case err != nil:
			return nil, fmt.Errorf("%w: request body must be a JSON object: %v", domain.ErrInvalidParams, err)
		}
		for key, value := range body {
			params[key] = value
		}
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return params, nil
}

// ErrorBody is the JSON document returned for failed calls.
type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, route domain.Route, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("gateway call failed", "route", route.String(), "status", status, "err", err)
	} else {
		s.logger.Debug("gateway call rejected", "route", route.String(), "status", status, "err", err)
	}
	writeJSON(w, status, ErrorBody{
		Code:    status,
		Type:    domain.Code(err),
		Message: err.Error(),
	}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// openAPI handles GET /openapi.json.
func (s *Server) openAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Document(s.routes, s.version), s.logger)
}
