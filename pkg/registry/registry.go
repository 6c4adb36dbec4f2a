package registry

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
	"github.com/aretw0/meshwork/pkg/ports"
)

// Entry is a service hosted by the local node.
type Entry struct {
	service   ports.Service
	actions   map[string]ports.Action
	names     []string
	deps      []string
	readiness atomic.Int32
}

// Service returns the hosted service.
func (e *Entry) Service() ports.Service {
	return e.service
}

// Name returns the service name.
func (e *Entry) Name() string {
	return e.service.Name()
}

// Dependencies returns the declared dependencies.
func (e *Entry) Dependencies() []string {
	return e.deps
}

// Readiness returns the current readiness. Safe from any goroutine.
func (e *Entry) Readiness() domain.Readiness {
	return domain.Readiness(e.readiness.Load())
}

// Action returns the handler registered under name.
func (e *Entry) Action(name string) (ports.Action, error) {
	handler, ok := e.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", domain.ErrActionNotFound, e.Name(), name)
	}
	return handler, nil
}

func (e *Entry) record(nodeID string) domain.ServiceRecord {
	return domain.ServiceRecord{
		Name:         e.Name(),
		NodeID:       nodeID,
		Actions:      append([]string(nil), e.names...),
		Dependencies: append([]string(nil), e.deps...),
		Readiness:    e.Readiness(),
	}
}

// Registry is the service table of one node. Mesh-wide uniqueness and
// readiness are delegated to the shared Directory; local readiness is kept in
// atomics so the call path never takes a lock to check it.
type Registry struct {
	nodeID string
	dir    ports.Directory
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithLifecycleHooks sets the hooks fired on readiness transitions.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Registry) {
		r.hooks = hooks
	}
}

// New creates an empty registry for nodeID.
func New(nodeID string, dir ports.Directory, opts ...Option) *Registry {
	r := &Registry{
		nodeID:  nodeID,
		dir:     dir,
		logger:  logging.NewNop(),
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates svc and records it mesh-wide as pending.
func (r *Registry) Register(ctx context.Context, svc ports.Service) error {
	entry, err := newEntry(svc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.Name()]; exists {
		return fmt.Errorf("%w: %s is already hosted by %s", domain.ErrDuplicateService, entry.Name(), r.nodeID)
	}
	if err := r.dir.Register(ctx, entry.record(r.nodeID)); err != nil {
		return err
	}

	r.entries[entry.Name()] = entry
	r.order = append(r.order, entry.Name())
	r.logger.Info("service registered", "service", entry.Name(), "actions", entry.names, "dependencies", entry.deps)
	return nil
}

func newEntry(svc ports.Service) (*Entry, error) {
	if svc == nil || svc.Name() == "" {
		return nil, errors.New("service name is required")
	}
	defs := svc.Actions()
	if len(defs) == 0 {
		return nil, fmt.Errorf("service %s defines no actions", svc.Name())
	}

	entry := &Entry{
		service: svc,
		actions: make(map[string]ports.Action, len(defs)),
		names:   make([]string, 0, len(defs)),
		deps:    append([]string(nil), svc.Dependencies()...),
	}
	for _, def := range defs {
		if def.Name == "" || def.Handler == nil {
			return nil, fmt.Errorf("service %s: action needs a name and a handler", svc.Name())
		}
		if _, dup := entry.actions[def.Name]; dup {
			return nil, fmt.Errorf("service %s: action %s defined twice", svc.Name(), def.Name)
		}
		entry.actions[def.Name] = def.Handler
		entry.names = append(entry.names, def.Name)
	}
	return entry, nil
}

// Local returns the entry of a service hosted by this node.
func (r *Registry) Local(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Entries returns the local entries in registration order.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Services returns the records of the local services in registration order.
func (r *Registry) Services() []domain.ServiceRecord {
	entries := r.Entries()
	out := make([]domain.ServiceRecord, len(entries))
	for i, e := range entries {
		out[i] = e.record(r.nodeID)
	}
	return out
}

// Resolve returns the record of a ready service, local or remote.
func (r *Registry) Resolve(ctx context.Context, name string) (domain.ServiceRecord, error) {
	if entry, ok := r.Local(name); ok {
		rec := entry.record(r.nodeID)
		if rec.Readiness != domain.ReadinessReady {
			return domain.ServiceRecord{}, fmt.Errorf("%w: %s is %s", domain.ErrServiceUnavailable, name, rec.Readiness)
		}
		return rec, nil
	}

	rec, err := r.dir.Lookup(ctx, name)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if rec.Readiness != domain.ReadinessReady {
		return domain.ServiceRecord{}, fmt.Errorf("%w: %s is %s", domain.ErrServiceUnavailable, name, rec.Readiness)
	}
	return rec, nil
}

// MarkReady moves a pending local service to ready.
func (r *Registry) MarkReady(ctx context.Context, name string) error {
	return r.transition(ctx, name, domain.ReadinessReady, nil)
}

// MarkFailed moves a pending local service to failed.
func (r *Registry) MarkFailed(ctx context.Context, name string, cause error) error {
	return r.transition(ctx, name, domain.ReadinessFailed, cause)
}

func (r *Registry) transition(ctx context.Context, name string, next domain.Readiness, cause error) error {
	entry, ok := r.Local(name)
	if !ok {
		return fmt.Errorf("%w: %s is not hosted by %s", domain.ErrServiceNotFound, name, r.nodeID)
	}
	if !entry.readiness.CompareAndSwap(int32(domain.ReadinessPending), int32(next)) {
		return nil
	}

	if err := r.dir.SetReadiness(ctx, name, next); err != nil {
		return fmt.Errorf("failed to publish readiness of %s: %w", name, err)
	}

	if next == domain.ReadinessReady {
		r.logger.Info("service ready", "service", name)
	} else {
		r.logger.Error("service failed", "service", name, "err", cause)
	}
	if r.hooks.OnReadiness != nil {
		r.hooks.OnReadiness(ctx, &domain.ServiceEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventReadiness,
				NodeID:    r.nodeID,
			},
			Service:   name,
			Readiness: next,
			Err:       cause,
		})
	}
	return nil
}

// UnregisterAll removes every local service from the directory.
func (r *Registry) UnregisterAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if err := r.dir.Unregister(ctx, name, r.nodeID); err != nil {
			errs = append(errs, err)
		}
	}
	r.entries = make(map[string]*Entry)
	r.order = nil
	return errors.Join(errs...)
}
