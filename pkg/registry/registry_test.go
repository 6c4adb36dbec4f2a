package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	name    string
	deps    []string
	actions []ports.ActionDef
}

func (s stubService) Name() string { return s.name }

func (s stubService) Dependencies() []string { return s.deps }

func (s stubService) Actions() []ports.ActionDef { return s.actions }

func echo(ctx context.Context, call *domain.CallContext) (any, error) {
	return call.Params, nil
}

func newService(name string, deps ...string) stubService {
	return stubService{
		name:    name,
		deps:    deps,
		actions: []ports.ActionDef{{Name: "echo", Handler: echo}},
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	reg := registry.New("node-1", dir)

	require.NoError(t, reg.Register(ctx, newService("db")))

	_, err := reg.Resolve(ctx, "db")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable, "pending service must not resolve")

	require.NoError(t, reg.MarkReady(ctx, "db"))

	rec, err := reg.Resolve(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, "node-1", rec.NodeID)
	assert.Equal(t, []string{"echo"}, rec.Actions)

	shared, err := dir.Lookup(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, domain.ReadinessReady, shared.Readiness, "readiness must be published to the directory")
}

func TestRegistry_ResolveRemote(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	owner := registry.New("node-2", dir)
	other := registry.New("node-1", dir)

	require.NoError(t, owner.Register(ctx, newService("db")))

	_, err := other.Resolve(ctx, "db")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	_, err = other.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)

	require.NoError(t, owner.MarkReady(ctx, "db"))
	rec, err := other.Resolve(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, "node-2", rec.NodeID)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	reg := registry.New("node-1", memory.NewDirectory())

	err := reg.Register(ctx, stubService{name: "empty"})
	assert.Error(t, err, "a service needs at least one action")

	err = reg.Register(ctx, stubService{
		name: "twice",
		actions: []ports.ActionDef{
			{Name: "a", Handler: echo},
			{Name: "a", Handler: echo},
		},
	})
	assert.Error(t, err)

	err = reg.Register(ctx, stubService{actions: []ports.ActionDef{{Name: "a", Handler: echo}}})
	assert.Error(t, err)

	assert.Empty(t, reg.Services())
}

func TestRegistry_DuplicateAcrossNodes(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	first := registry.New("node-1", dir)
	second := registry.New("node-2", dir)

	require.NoError(t, first.Register(ctx, newService("db")))

	err := second.Register(ctx, newService("db"))
	assert.ErrorIs(t, err, domain.ErrDuplicateService)
	assert.Empty(t, second.Services(), "failed registration leaves no local state")

	err = first.Register(ctx, newService("db"))
	assert.ErrorIs(t, err, domain.ErrDuplicateService)
}

func TestRegistry_Cycle(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	reg := registry.New("node-1", dir)

	require.NoError(t, reg.Register(ctx, newService("a", "b")))

	err := reg.Register(ctx, newService("b", "a"))
	var cycle *domain.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Cycle)

	_, ok := reg.Local("b")
	assert.False(t, ok)
}

func TestRegistry_ReadinessIsMonotonic(t *testing.T) {
	ctx := context.Background()
	var events []domain.Readiness
	reg := registry.New("node-1", memory.NewDirectory(), registry.WithLifecycleHooks(domain.LifecycleHooks{
		OnReadiness: func(_ context.Context, e *domain.ServiceEvent) {
			events = append(events, e.Readiness)
		},
	}))
	require.NoError(t, reg.Register(ctx, newService("db")))

	require.NoError(t, reg.MarkReady(ctx, "db"))
	require.NoError(t, reg.MarkFailed(ctx, "db", errors.New("late failure")))

	entry, ok := reg.Local("db")
	require.True(t, ok)
	assert.Equal(t, domain.ReadinessReady, entry.Readiness())
	assert.Equal(t, []domain.Readiness{domain.ReadinessReady}, events, "hook fires once per transition")
}

func TestRegistry_Action(t *testing.T) {
	ctx := context.Background()
	reg := registry.New("node-1", memory.NewDirectory())
	require.NoError(t, reg.Register(ctx, newService("db")))

	entry, _ := reg.Local("db")
	_, err := entry.Action("echo")
	assert.NoError(t, err)

	_, err = entry.Action("nope")
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestRegistry_UnregisterAll(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	reg := registry.New("node-1", dir)
	require.NoError(t, reg.Register(ctx, newService("db")))
	require.NoError(t, reg.Register(ctx, newService("products", "db")))

	require.NoError(t, reg.UnregisterAll(ctx))

	records, err := dir.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	again := registry.New("node-9", dir)
	assert.NoError(t, again.Register(ctx, newService("db")), "names are free again after unregister")
}
