package node_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/node"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testService struct {
	name    string
	deps    []string
	actions []ports.ActionDef
	startFn func(context.Context) error
	stopped bool
}

func (s *testService) Name() string { return s.name }

func (s *testService) Dependencies() []string { return s.deps }

func (s *testService) Actions() []ports.ActionDef { return s.actions }

func (s *testService) Start(ctx context.Context) error {
	if s.startFn != nil {
		return s.startFn(ctx)
	}
	return nil
}

func (s *testService) Stop(ctx context.Context) error {
	s.stopped = true
	return nil
}

func action(name string, fn ports.Action) ports.ActionDef {
	return ports.ActionDef{Name: name, Handler: fn}
}

type mesh struct {
	transport *memory.Transport
	dir       *memory.Directory
	nodes     map[string]*node.Node
}

func newMesh(t *testing.T, ids ...string) *mesh {
	t.Helper()
	m := &mesh{
		transport: memory.NewTransport(),
		dir:       memory.NewDirectory(),
		nodes:     make(map[string]*node.Node),
	}
	for _, id := range ids {
		m.nodes[id] = node.New(id, m.transport, m.dir)
	}
	t.Cleanup(func() {
		for _, n := range m.nodes {
			_ = n.Stop(context.Background())
		}
	})
	return m
}

func (m *mesh) add(t *testing.T, id string, svc ports.Service) {
	t.Helper()
	require.NoError(t, m.nodes[id].AddService(context.Background(), svc))
}

func (m *mesh) start(t *testing.T) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, n := range m.nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.Start(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func echoService(name string, deps ...string) *testService {
	return &testService{
		name: name,
		deps: deps,
		actions: []ports.ActionDef{
			action("echo", func(ctx context.Context, call *domain.CallContext) (any, error) {
				return map[string]any{"params": call.Params, "node": call.NodeID}, nil
			}),
		},
	}
}

func TestNode_LocalAndRemoteCall(t *testing.T) {
	m := newMesh(t, "node-1", "node-2")
	m.add(t, "node-1", echoService("local"))
	m.add(t, "node-2", echoService("remote"))
	require.NoError(t, m.start(t))

	ctx := context.Background()
	got, err := m.nodes["node-1"].Call(ctx, "local", "echo", domain.Params{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "node-1", got.(map[string]any)["node"])

	got, err = m.nodes["node-1"].Call(ctx, "remote", "echo", domain.Params{"x": 1})
	require.NoError(t, err)
	result := got.(map[string]any)
	assert.Equal(t, "node-2", result["node"])
	assert.Equal(t, map[string]any{"x": float64(1)}, result["params"], "remote results arrive as JSON values")
}

func TestNode_ResolutionFailures(t *testing.T) {
	m := newMesh(t, "node-1", "node-2")
	m.add(t, "node-1", echoService("local"))
	m.add(t, "node-2", echoService("later"))

	// Only node-1 starts, so "later" stays pending.
	require.NoError(t, m.nodes["node-1"].Start(context.Background()))
	ctx := context.Background()
	n := m.nodes["node-1"]

	_, err := n.Call(ctx, "missing", "echo", nil)
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)

	_, err = n.Call(ctx, "local", "missing", nil)
	assert.ErrorIs(t, err, domain.ErrActionNotFound)

	_, err = n.Call(ctx, "later", "echo", nil)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestNode_RemoteErrorKeepsKind(t *testing.T) {
	m := newMesh(t, "node-1", "node-2")
	m.add(t, "node-2", &testService{
		name: "db",
		actions: []ports.ActionDef{
			action("get", func(ctx context.Context, call *domain.CallContext) (any, error) {
				return nil, errors.New("connection reset")
			}),
			action("find", func(ctx context.Context, call *domain.CallContext) (any, error) {
				return nil, domain.ErrNotFound
			}),
		},
	})
	require.NoError(t, m.start(t))
	ctx := context.Background()

	_, err := m.nodes["node-1"].Call(ctx, "db", "find", nil)
	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "node-2", remote.NodeID)
	assert.Equal(t, domain.CodeNotFound, remote.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = m.nodes["node-1"].Call(ctx, "db", "get", nil)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, domain.CodeInternal, remote.Code, "plain errors travel as internal failures")
}

func TestNode_LocalErrorWrapsCause(t *testing.T) {
	m := newMesh(t, "node-1")
	cause := errors.New("disk full")
	m.add(t, "node-1", &testService{
		name: "db",
		actions: []ports.ActionDef{
			action("create", func(context.Context, *domain.CallContext) (any, error) {
				return nil, cause
			}),
		},
	})
	require.NoError(t, m.start(t))

	_, err := m.nodes["node-1"].Call(context.Background(), "db", "create", nil)
	var local *domain.LocalError
	require.True(t, errors.As(err, &local))
	assert.Equal(t, "db", local.Service)
	assert.Equal(t, "create", local.Action)
	assert.ErrorIs(t, err, cause)
}

func TestNode_RemoteTimeout(t *testing.T) {
	m := newMesh(t, "node-1", "node-2")
	release := make(chan struct{})
	defer close(release)
	m.add(t, "node-2", &testService{
		name: "db",
		actions: []ports.ActionDef{
			action("create", func(ctx context.Context, call *domain.CallContext) (any, error) {
				select {
				case <-release:
				case <-time.After(time.Second):
				}
				return "late", nil
			}),
		},
	})
	require.NoError(t, m.start(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := m.nodes["node-1"].Call(ctx, "db", "create", nil)
	assert.ErrorIs(t, err, domain.ErrRemoteTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestNode_NestedCallsShareRequest(t *testing.T) {
	m := newMesh(t, "node-1", "node-2", "node-3")

	seen := make(chan *domain.CallContext, 1)
	var deadlineSeen time.Time
	m.add(t, "node-2", &testService{
		name: "db",
		actions: []ports.ActionDef{
			action("find", func(ctx context.Context, call *domain.CallContext) (any, error) {
				deadlineSeen, _ = ctx.Deadline()
				seen <- call
				return []any{}, nil
			}),
		},
	})
	m.add(t, "node-3", &testService{
		name: "products",
		deps: []string{"db"},
		actions: []ports.ActionDef{
			action("list", func(ctx context.Context, call *domain.CallContext) (any, error) {
				return call.Call(ctx, "db", "find", nil)
			}),
		},
	})
	require.NoError(t, m.start(t))

	deadline := time.Now().Add(3 * time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	_, err := m.nodes["node-1"].Call(ctx, "products", "list", nil)
	require.NoError(t, err)

	nested := <-seen
	assert.Equal(t, 2, nested.Level)
	assert.NotEmpty(t, nested.ParentID)
	assert.NotEqual(t, nested.ID, nested.RequestID)
	assert.Equal(t, "node-3", nested.Caller.NodeID)
	assert.Equal(t, "products", nested.Caller.Service)
	assert.WithinDuration(t, deadline, deadlineSeen, 5*time.Millisecond, "deadline travels with the request")
}

func TestNode_CallHooks(t *testing.T) {
	transport := memory.NewTransport()
	dir := memory.NewDirectory()

	var (
		mu      sync.Mutex
		returns []*domain.CallEvent
	)
	n := node.New("node-1", transport, dir, node.WithLifecycleHooks(domain.LifecycleHooks{
		OnReturn: func(_ context.Context, e *domain.CallEvent) {
			mu.Lock()
			returns = append(returns, e)
			mu.Unlock()
		},
	}))
	defer n.Stop(context.Background())
	require.NoError(t, n.AddService(context.Background(), echoService("local")))
	require.NoError(t, n.Start(context.Background()))

	_, err := n.Call(context.Background(), "local", "echo", nil)
	require.NoError(t, err)
	_, err = n.Call(context.Background(), "nope", "echo", nil)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, returns, 2)
	assert.Equal(t, "ok", returns[0].Outcome())
	assert.Equal(t, "node-1", returns[0].Target)
	assert.False(t, returns[0].Remote)
	assert.Equal(t, domain.CodeServiceNotFound, returns[1].Outcome())
}

func TestNode_StartReportsFailures(t *testing.T) {
	m := newMesh(t, "node-1", "node-2")
	m.add(t, "node-1", &testService{
		name:    "db",
		actions: []ports.ActionDef{action("find", func(context.Context, *domain.CallContext) (any, error) { return nil, nil })},
		startFn: func(context.Context) error { return errors.New("no database") },
	})
	m.add(t, "node-2", echoService("products", "db"))

	err := m.start(t)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no database")
	assert.ErrorIs(t, err, domain.ErrDependencyFailed)

	_, err = m.nodes["node-2"].Call(context.Background(), "products", "echo", nil)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestNode_Stop(t *testing.T) {
	m := newMesh(t, "node-1", "node-2")
	svc := echoService("db")
	m.add(t, "node-2", svc)
	require.NoError(t, m.start(t))
	ctx := context.Background()

	require.NoError(t, m.nodes["node-2"].Stop(ctx))
	assert.True(t, svc.stopped)
	assert.Equal(t, domain.LivenessStopped, m.nodes["node-2"].Liveness())

	_, err := m.nodes["node-1"].Call(ctx, "db", "echo", nil)
	assert.ErrorIs(t, err, domain.ErrServiceNotFound, "stopped node leaves the directory")

	_, err = m.nodes["node-2"].Call(ctx, "db", "echo", nil)
	assert.ErrorIs(t, err, domain.ErrNodeStopped)
}

func TestNode_AddServiceAfterStart(t *testing.T) {
	m := newMesh(t, "node-1")
	require.NoError(t, m.start(t))

	err := m.nodes["node-1"].AddService(context.Background(), echoService("late"))
	assert.Error(t, err)
}

// beatingDirectory counts heartbeats on top of the in-memory directory.
type beatingDirectory struct {
	*memory.Directory
	beats atomic.Int32
}

func (d *beatingDirectory) Heartbeat(ctx context.Context, nodeID string) error {
	d.beats.Add(1)
	return nil
}

func (d *beatingDirectory) HeartbeatInterval() time.Duration { return 10 * time.Millisecond }

func TestNode_HeartbeatUntilStop(t *testing.T) {
	dir := &beatingDirectory{Directory: memory.NewDirectory()}
	n := node.New("node-1", memory.NewTransport(), dir)

	// Nodes without services stay silent.
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, dir.beats.Load())

	require.NoError(t, n.AddService(context.Background(), echoService("echo")))
	require.NoError(t, n.AddService(context.Background(), echoService("other")))
	assert.Eventually(t, func() bool { return dir.beats.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, n.Stop(context.Background()))
	time.Sleep(30 * time.Millisecond)
	after := dir.beats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, dir.beats.Load(), "no heartbeat after stop")
}
