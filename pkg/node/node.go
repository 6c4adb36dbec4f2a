package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/gate"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/registry"
)

// Node hosts services, answers requests addressed to it and routes calls
// issued by its services or by external callers.
type Node struct {
	id        string
	transport ports.Transport
	dir       ports.Directory
	registry  *registry.Registry
	gate      *gate.Gate

	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	callTimeout time.Duration

	liveness atomic.Int32
	started  atomic.Bool

	// lifeCtx bounds handlers and dependency monitors; canceled on Stop.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu          sync.Mutex
	pending     map[string]chan domain.Message
	stopping    bool
	inflight    sync.WaitGroup
	unsubscribe ports.UnsubscribeFunc

	stopped       chan struct{}
	stopOnce      sync.Once
	heartbeatOnce sync.Once
}

var _ ports.Caller = (*Node)(nil)

// New creates a node. Every node of a mesh must share the same transport and
// directory backends.
func New(id string, transport ports.Transport, dir ports.Directory, opts ...Option) *Node {
	n := &Node{
		id:          id,
		transport:   transport,
		dir:         dir,
		logger:      logging.NewNop(),
		callTimeout: DefaultCallTimeout,
		pending:     make(map[string]chan domain.Message),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("node", id)
	n.lifeCtx, n.lifeCancel = context.WithCancel(context.Background())

	n.registry = registry.New(id, dir,
		registry.WithLogger(n.logger),
		registry.WithLifecycleHooks(n.hooks),
	)
	n.gate = gate.New(id, dir, n.registry,
		gate.WithLogger(n.logger),
		gate.WithLifecycleHooks(n.hooks),
	)
	n.liveness.Store(int32(domain.LivenessStarting))
	return n
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.id
}

// Liveness returns the lifecycle state of the node.
func (n *Node) Liveness() domain.Liveness {
	return domain.Liveness(n.liveness.Load())
}

// Services returns the records of the hosted services.
func (n *Node) Services() []domain.ServiceRecord {
	return n.registry.Services()
}

// AddService registers svc mesh-wide. Services must be added before Start.
func (n *Node) AddService(ctx context.Context, svc ports.Service) error {
	if n.started.Load() {
		return fmt.Errorf("node %s: services must be added before start", n.id)
	}
	if err := n.registry.Register(ctx, svc); err != nil {
		return err
	}
	n.heartbeatOnce.Do(n.keepAlive)
	return nil
}

// keepAlive refreshes the node heartbeat until the node stops, for
// directories that expire the records of silent nodes.
func (n *Node) keepAlive() {
	hb, ok := n.dir.(ports.Heartbeater)
	if !ok || hb.HeartbeatInterval() <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(hb.HeartbeatInterval())
		defer ticker.Stop()
		for {
			select {
			case <-n.lifeCtx.Done():
				return
			case <-ticker.C:
				if err := hb.Heartbeat(n.lifeCtx, n.id); err != nil && n.lifeCtx.Err() == nil {
					n.logger.Warn("heartbeat failed", "err", err)
				}
			}
		}
	}()
}

// Start attaches the node to the transport and brings every hosted service
// to a terminal readiness. It returns once all of them are ready or failed;
// failures are joined into the returned error.
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return fmt.Errorf("node %s already started", n.id)
	}

	unsubscribe, err := n.transport.Subscribe(ctx, n.id, n.dispatch)
	if err != nil {
		return fmt.Errorf("node %s: subscribe: %w", n.id, err)
	}
	n.mu.Lock()
	n.unsubscribe = unsubscribe
	n.mu.Unlock()

	entries := n.registry.Entries()
	errs := make([]error, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc := entry.Service()
			if err := n.gate.Run(ctx, svc); err != nil {
				errs[i] = err
				return
			}
			go n.gate.Monitor(n.lifeCtx, svc.Name(), svc.Dependencies())
		}()
	}
	wg.Wait()

	n.liveness.Store(int32(domain.LivenessRunning))
	if err := errors.Join(errs...); err != nil {
		return err
	}
	n.logger.Info("node started", "services", len(entries))
	return nil
}

// Stop drains in-flight requests, stops the hosted services and removes them
// from the directory. Calls still waiting for a reply fail with
// domain.ErrNodeStopped.
func (n *Node) Stop(ctx context.Context) error {
	var err error
	n.stopOnce.Do(func() {
		err = n.stop(ctx)
	})
	return err
}

func (n *Node) stop(ctx context.Context) error {
	n.mu.Lock()
	n.stopping = true
	n.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		n.logger.Warn("stop deadline reached with requests in flight")
	}

	n.liveness.Store(int32(domain.LivenessStopped))
	close(n.stopped)
	n.lifeCancel()

	var errs []error
	entries := n.registry.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		stopper, ok := entry.Service().(ports.Stopper)
		if !ok || entry.Readiness() != domain.ReadinessReady {
			continue
		}
		if err := stopper.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("service %s: stop: %w", entry.Name(), err))
		}
	}

	n.mu.Lock()
	unsubscribe := n.unsubscribe
	n.mu.Unlock()
	if unsubscribe != nil {
		if err := unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := n.registry.UnregisterAll(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}
	n.logger.Info("node stopped")
	return errors.Join(errs...)
}
