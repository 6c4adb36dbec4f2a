package meshwork

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/node"
	"github.com/aretw0/meshwork/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// ErrDuplicateNode is returned when two nodes of a mesh share an ID.
var ErrDuplicateNode = errors.New("duplicate node")

// Mesh is the high-level entry point: a set of nodes sharing one transport
// and one directory, started behind a single barrier.
type Mesh struct {
	transport     ports.Transport
	dir           ports.Directory
	ownsTransport bool
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	callTimeout   time.Duration

	mu    sync.Mutex
	nodes []*node.Node
}

// Option defines a functional option for configuring the Mesh.
type Option func(*Mesh)

// WithTransport sets the transport shared by every node. The mesh does not
// close a transport it did not create.
func WithTransport(t ports.Transport) Option {
	return func(m *Mesh) {
		m.transport = t
	}
}

// WithDirectory sets the service directory shared by every node.
func WithDirectory(d ports.Directory) Option {
	return func(m *Mesh) {
		m.dir = d
	}
}

// WithLogger sets a custom structured logger for the mesh and its nodes.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mesh) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every node.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Mesh) {
		m.hooks = hooks
	}
}

// WithCallTimeout sets the timeout of calls issued without a deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Mesh) {
		m.callTimeout = d
	}
}

// New creates a mesh. Without options, nodes talk through an in-process
// transport and directory.
func New(opts ...Option) *Mesh {
	m := &Mesh{
		logger:      logging.NewNop(),
		callTimeout: node.DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = memory.NewTransport()
		m.ownsTransport = true
	}
	if m.dir == nil {
		m.dir = memory.NewDirectory()
	}
	return m
}

// AddNode creates a node hosting the given services.
func (m *Mesh) AddNode(ctx context.Context, id string, services ...ports.Service) (*node.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.ContainsFunc(m.nodes, func(n *node.Node) bool { return n.ID() == id }) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}

	n := node.New(id, m.transport, m.dir,
		node.WithLogger(m.logger),
		node.WithLifecycleHooks(m.hooks),
		node.WithCallTimeout(m.callTimeout),
	)
	for _, svc := range services {
		if err := n.AddService(ctx, svc); err != nil {
			// Stopping an unstarted node unregisters what it registered so far.
			return nil, errors.Join(fmt.Errorf("node %s: %w", id, err), n.Stop(context.WithoutCancel(ctx)))
		}
	}
	m.nodes = append(m.nodes, n)
	return n, nil
}

// Node returns the node with the given ID.
func (m *Mesh) Node(id string) (*node.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nodes {
		if n.ID() == id {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns the nodes in creation order.
func (m *Mesh) Nodes() []*node.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.nodes)
}

// Start starts every node concurrently and returns once all of them have
// finished starting: each service is then ready or failed. The result joins
// the failures of all nodes.
func (m *Mesh) Start(ctx context.Context) error {
	nodes := m.Nodes()
	errs := make([]error, len(nodes))

	// No group context: a failing node must not cut short the start of the
	// others, so every failure is collected and joined.
	var g errgroup.Group
	for i, n := range nodes {
		g.Go(func() error {
			errs[i] = n.Start(ctx)
			return errs[i]
		})
	}

	if g.Wait() != nil {
		err := errors.Join(errs...)
		m.logger.Error("mesh started with failures", "err", err)
		return err
	}
	m.logger.Info("mesh started", "nodes", len(nodes))
	return nil
}

// Stop stops the nodes in reverse creation order.
func (m *Mesh) Stop(ctx context.Context) error {
	nodes := m.Nodes()
	var errs []error
	for _, n := range slices.Backward(nodes) {
		if err := n.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.ID(), err))
		}
	}
	if m.ownsTransport {
		if err := m.transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Describe lists every service of the directory, including services hosted
// by nodes of other processes.
func (m *Mesh) Describe(ctx context.Context) ([]domain.ServiceRecord, error) {
	return m.dir.List(ctx)
}

// Call routes a call through the first node of the mesh.
func (m *Mesh) Call(ctx context.Context, service, action string, params domain.Params) (any, error) {
	nodes := m.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: mesh has no nodes", domain.ErrNodeStopped)
	}
	return nodes[0].Call(ctx, service, action, params)
}
