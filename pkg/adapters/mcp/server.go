// Package mcp exposes the gateway route table as Model Context Protocol tools.
// Every route becomes one tool named "service_action" whose arguments are the
// route's path parameters plus an optional "body" object, flattened into the
// parameter bag exactly as the HTTP gateway does.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RoutesURI is the resource holding the route table as JSON.
const RoutesURI = "meshwork://routes"

// Server wraps a Caller and exposes its routes as an MCP server.
type Server struct {
	caller    ports.Caller
	routes    []domain.Route
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the MCP server.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	version string
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithVersion sets the version reported in the MCP handshake.
func WithVersion(version string) Option {
	return func(c *config) {
		c.version = version
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(caller ports.Caller, routes []domain.Route, opts ...Option) *Server {
	cfg := config{logger: logging.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		caller: caller,
		routes: routes,
		logger: cfg.logger,
		mcpServer: server.NewMCPServer("meshwork-mcp", cfg.version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           corsMiddleware(server.NewStreamableHTTPServer(s.mcpServer)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ToolName returns the tool name of a route.
func ToolName(route domain.Route) string {
	return route.Service + "_" + route.Action
}

func (s *Server) registerTools() {
	for _, route := range s.routes {
		opts := []mcp.ToolOption{
			mcp.WithDescription(fmt.Sprintf("Call %s (served at %s %s).", route.Target(), route.Method, route.Path)),
		}
		for _, name := range route.PathParams() {
			opts = append(opts, mcp.WithString(name, mcp.Required(), mcp.Description("Path parameter "+name)))
		}
		opts = append(opts, mcp.WithObject("body",
			mcp.Description("Fields passed to the action as parameters"),
			mcp.AdditionalProperties(true),
		))
		s.mcpServer.AddTool(mcp.NewTool(ToolName(route), opts...), s.toolHandler(route))
	}
}

func (s *Server) toolHandler(route domain.Route) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := toolParams(route, request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := s.caller.Call(ctx, route.Service, route.Action, params)
		if err != nil {
			s.logger.Warn("MCP tool call failed", "tool", ToolName(route), "err", err)
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.Code(err), err)), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// toolParams flattens body fields and path parameters; path parameters win.
func toolParams(route domain.Route, args map[string]any) (domain.Params, error) {
	params := domain.Params{}
	if raw, ok := args["body"]; ok && raw != nil {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: body must be an object", domain.ErrInvalidParams)
		}
		for k, v := range body {
			params[k] = v
		}
	}
	for _, name := range route.PathParams() {
		v, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidParams, name)
		}
		params[name] = fmt.Sprint(v)
	}
	return params, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(RoutesURI, "Gateway route table",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		routes := append([]domain.Route(nil), s.routes...)
		domain.SortRoutes(routes)
		data, err := json.Marshal(routes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode routes: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RoutesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
