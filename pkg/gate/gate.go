package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/registry"
)

// errWatchClosed is returned when the directory stops streaming events while
// dependencies are still pending.
var errWatchClosed = errors.New("readiness watch closed")

// Gate holds a service back until every dependency is ready, then runs its
// local init and publishes the outcome.
type Gate struct {
	nodeID   string
	dir      ports.Directory
	registry *registry.Registry
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithLifecycleHooks sets the hooks fired for dependency failures.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Gate) {
		g.hooks = hooks
	}
}

// New creates a gate for the services of one node.
func New(nodeID string, dir ports.Directory, reg *registry.Registry, opts ...Option) *Gate {
	g := &Gate{
		nodeID:   nodeID,
		dir:      dir,
		registry: reg,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run brings a registered service to a terminal readiness. It returns nil once
// the service is ready; otherwise the service is marked failed and the cause is
// returned.
func (g *Gate) Run(ctx context.Context, svc ports.Service) error {
	name := svc.Name()
	deps := svc.Dependencies()

	if len(deps) > 0 {
		g.logger.Debug("waiting for dependencies", "service", name, "dependencies", deps)
	}
	if err := g.Await(ctx, deps); err != nil {
		return g.fail(ctx, name, err)
	}

	if starter, ok := svc.(ports.Starter); ok {
		if err := starter.Start(ctx); err != nil {
			return g.fail(ctx, name, fmt.Errorf("start: %w", err))
		}
	}
	return g.registry.MarkReady(ctx, name)
}

func (g *Gate) fail(ctx context.Context, name string, cause error) error {
	err := fmt.Errorf("service %s: %w", name, cause)
	if markErr := g.registry.MarkFailed(context.WithoutCancel(ctx), name, cause); markErr != nil {
		return errors.Join(err, markErr)
	}
	return err
}

// Await blocks until every named dependency is ready. The directory watch is
// opened before the current state is read, so a transition cannot fall
// between the two.
func (g *Gate) Await(ctx context.Context, deps []string) error {
	if len(deps) == 0 {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := g.dir.Watch(watchCtx)
	if err != nil {
		return err
	}

	pending := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		rec, err := g.dir.Lookup(ctx, dep)
		switch {
		case errors.Is(err, domain.ErrServiceNotFound):
			pending[dep] = struct{}{}
		case err != nil:
			return err
		case rec.Readiness == domain.ReadinessFailed:
			return fmt.Errorf("%w: %s", domain.ErrDependencyFailed, dep)
		case rec.Readiness != domain.ReadinessReady:
			pending[dep] = struct{}{}
		}
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", joinSorted(pending), ctx.Err())
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return fmt.Errorf("waiting for %s: %w", joinSorted(pending), ctx.Err())
				}
				return errWatchClosed
			}
			if _, waiting := pending[ev.Service]; !waiting {
				continue
			}
			switch ev.Readiness {
			case domain.ReadinessReady:
				delete(pending, ev.Service)
			case domain.ReadinessFailed:
				return fmt.Errorf("%w: %s", domain.ErrDependencyFailed, ev.Service)
			}
		}
	}
	return nil
}

// Monitor reports dependencies of a ready service that fail later on. The
// service stays ready. Monitor returns when ctx is done.
func (g *Gate) Monitor(ctx context.Context, name string, deps []string) {
	if len(deps) == 0 {
		return
	}
	watched := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		watched[dep] = struct{}{}
	}

	events, err := g.dir.Watch(ctx)
	if err != nil {
		g.logger.Warn("cannot monitor dependencies", "service", name, "err", err)
		return
	}
	for ev := range events {
		if _, ok := watched[ev.Service]; !ok || ev.Readiness != domain.ReadinessFailed {
			continue
		}
		g.logger.Warn("dependency failed after service became ready", "service", name, "dependency", ev.Service)
		if g.hooks.OnDependencyFailed != nil {
			g.hooks.OnDependencyFailed(ctx, &domain.ServiceEvent{
				EventBase: domain.EventBase{
					Timestamp: time.Now(),
					Type:      domain.EventDependencyFailed,
					NodeID:    g.nodeID,
				},
				Service:    name,
				Readiness:  domain.ReadinessReady,
				Dependency: ev.Service,
				Err:        fmt.Errorf("%w: %s", domain.ErrDependencyFailed, ev.Service),
			})
		}
	}
}

func joinSorted(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
