package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/meshwork"
	"github.com/aretw0/meshwork/internal/config"
	"github.com/aretw0/meshwork/internal/presentation/graph"
	"github.com/aretw0/meshwork/internal/presentation/tui"
	"github.com/aretw0/meshwork/pkg/adapters/mcp"
	redisadapter "github.com/aretw0/meshwork/pkg/adapters/redis"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/google/uuid"
)

// shutdownTimeout bounds the graceful stop of a served mesh.
const shutdownTimeout = 10 * time.Second

// Options are shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	Out        io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) load() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// ServeOptions configures the 'serve' command.
type ServeOptions struct {
	Options
	// Nodes restricts the process to the named nodes of the topology.
	Nodes []string
	Quiet bool
}

// Serve builds the mesh, starts it behind the startup barrier and runs until
// ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if len(opts.Nodes) > 0 && !cfg.Distributed() {
		return errors.New("--node requires the redis transport: in-memory nodes cannot reach other processes")
	}
	if cfg, err = cfg.Select(opts.Nodes...); err != nil {
		return err
	}

	logger, err := createLogger(cfg.LogLevel, false)
	if err != nil {
		return err
	}
	if !opts.Quiet {
		tui.PrintBanner(meshwork.Version)
	}

	build, err := buildMesh(ctx, cfg, logger, opts.Debug)
	if err != nil {
		return err
	}
	defer build.Close()

	if err := startMesh(ctx, build.Mesh, cfg); err != nil {
		stopMesh(build.Mesh, logger)
		return handleExecutionError(err)
	}

	if !opts.Quiet {
		for _, n := range build.Mesh.Nodes() {
			names := make([]string, 0)
			for _, rec := range n.Services() {
				names = append(names, rec.Name)
			}
			printSystemMessage(opts.out(), "Node '%s' running [%s].", n.ID(), strings.Join(names, ", "))
		}
		if build.Gateway != nil {
			printSystemMessage(opts.out(), "Gateway listening on %s.", build.Gateway.Addr())
		}
	}

	<-ctx.Done()
	if !opts.Quiet {
		printSystemMessage(opts.out(), "Shutting down...")
	}
	return stopMesh(build.Mesh, logger)
}

func startMesh(ctx context.Context, m *meshwork.Mesh, cfg config.Config) error {
	if cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.StartTimeout))
		defer cancel()
	}
	return m.Start(ctx)
}

func stopMesh(m *meshwork.Mesh, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		logger.Error("mesh did not stop cleanly", "err", err)
		return err
	}
	return nil
}

// clientConfig prepares cfg for a short-lived client process. With the redis
// transport only an ephemeral client node is added; in memory the whole mesh
// runs in-process, without the gateway listener.
func clientConfig(cfg config.Config) (config.Config, string) {
	clientID := "cli-" + uuid.NewString()
	client := config.Node{ID: clientID}
	if cfg.Distributed() {
		cfg.Nodes = []config.Node{client}
		return cfg, clientID
	}

	nodes := make([]config.Node, 0, len(cfg.Nodes)+1)
	for _, n := range cfg.Nodes {
		kept := config.Node{ID: n.ID}
		for _, svc := range n.Services {
			if svc != config.ServiceGateway {
				kept.Services = append(kept.Services, svc)
			}
		}
		nodes = append(nodes, kept)
	}
	cfg.Nodes = append(nodes, client)
	return cfg, clientID
}

// CallOptions configures the 'call' command.
type CallOptions struct {
	Options
	// Target is "service.action".
	Target string
	// Params is a JSON object; empty means no parameters.
	Params  string
	Timeout time.Duration
}

// Call joins the mesh as a client node, issues one call and prints the result as JSON.
func Call(ctx context.Context, opts CallOptions) error {
	service, action, err := domain.ParseTarget(opts.Target)
	if err != nil {
		return err
	}
	var params domain.Params
	if opts.Params != "" {
		decoder := json.NewDecoder(strings.NewReader(opts.Params))
		decoder.UseNumber()
		if err := decoder.Decode(&params); err != nil {
			return fmt.Errorf("error parsing --params JSON: %w", err)
		}
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	cfg, clientID := clientConfig(cfg)
	logger, err := createLogger(cfg.LogLevel, !opts.Debug)
	if err != nil {
		return err
	}

	build, err := buildMesh(ctx, cfg, logger, opts.Debug)
	if err != nil {
		return err
	}
	defer build.Close()
	defer stopMesh(build.Mesh, logger)

	if err := startMesh(ctx, build.Mesh, cfg); err != nil {
		return err
	}
	client, _ := build.Mesh.Node(clientID)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	result, err := client.Call(ctx, service, action, params)
	if err != nil {
		return fmt.Errorf("%s failed (%s): %w", opts.Target, domain.Code(err), err)
	}

	encoder := json.NewEncoder(opts.out())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// RoutesOptions configures the 'routes' command.
type RoutesOptions struct {
	Options
	Styled bool
}

// Routes prints the gateway route table as markdown.
func Routes(opts RoutesOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	routes, err := cfg.Routes()
	if err != nil {
		return err
	}
	out, err := tui.NewRenderer(opts.Styled)(tui.RoutesMarkdown(routes))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(opts.out(), out)
	return err
}

// Graph prints a Mermaid diagram of the services. With the redis transport
// the live directory is read; otherwise the configured mesh is started
// in-process and described.
func Graph(ctx context.Context, opts Options) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	var records []domain.ServiceRecord
	if cfg.Distributed() {
		client := redisadapter.NewClient(cfg.Redis.Addr, "", 0)
		defer client.Close()
		dir := redisadapter.NewDirectory(client, redisadapter.WithPrefix(cfg.Redis.Prefix))
		if records, err = dir.List(ctx); err != nil {
			return fmt.Errorf("error reading directory: %w", err)
		}
	} else {
		cfg.Gateway.Address = "127.0.0.1:0"
		build, err := buildMesh(ctx, cfg, createQuietLogger(), false)
		if err != nil {
			return err
		}
		defer build.Close()
		defer stopMesh(build.Mesh, createQuietLogger())

		// A failed start still yields a useful picture of failed services.
		_ = startMesh(ctx, build.Mesh, cfg)
		if records, err = build.Mesh.Describe(ctx); err != nil {
			return err
		}
	}

	_, err = fmt.Fprint(opts.out(), graph.GenerateMermaid(records))
	return err
}

// MCPOptions configures the 'mcp' command.
type MCPOptions struct {
	Options
	// Transport is "stdio" or "http".
	Transport string
	Addr      string
}

// ServeMCP exposes the gateway routes as MCP tools until ctx is cancelled.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	cfg, clientID := clientConfig(cfg)

	// Stdout carries JSON-RPC in stdio mode, so logs go to stderr or nowhere.
	logger, err := createLogger(cfg.LogLevel, !opts.Debug)
	if err != nil {
		return err
	}

	build, err := buildMesh(ctx, cfg, logger, opts.Debug)
	if err != nil {
		return err
	}
	defer build.Close()
	defer stopMesh(build.Mesh, logger)

	if err := startMesh(ctx, build.Mesh, cfg); err != nil {
		return err
	}
	client, _ := build.Mesh.Node(clientID)
	srv := mcp.NewServer(client, build.Routes, mcp.WithLogger(logger), mcp.WithVersion(meshwork.Version))

	switch opts.Transport {
	case "", "stdio":
		logger.Info("Starting meshwork MCP Server (Stdio)...")
		return srv.ServeStdio()
	case "http":
		return handleExecutionError(srv.ServeHTTP(ctx, opts.Addr))
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, http", opts.Transport)
	}
}

func createQuietLogger() *slog.Logger {
	logger, _ := createLogger("", true)
	return logger
}
