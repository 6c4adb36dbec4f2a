package crud_test

import (
	"context"
	"testing"

	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/services/crud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actions(store ports.ProductStore) map[string]ports.Action {
	c := crud.New[domain.Product, domain.ProductInput, domain.ProductPatch](store)
	out := make(map[string]ports.Action)
	for _, def := range c.Actions() {
		out[def.Name] = def.Handler
	}
	return out
}

func run(t *testing.T, handler ports.Action, params domain.Params) (any, error) {
	t.Helper()
	return handler(context.Background(), &domain.CallContext{Service: "db", Params: params})
}

func TestComponent_Actions(t *testing.T) {
	c := crud.New[domain.Product, domain.ProductInput, domain.ProductPatch](memory.NewStore())
	var names []string
	for _, def := range c.Actions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"find", "get", "create", "update", "remove"}, names)
}

func TestComponent_Lifecycle(t *testing.T) {
	a := actions(memory.NewStore())

	// Gateway parameters arrive as strings.
	created, err := run(t, a["create"], domain.Params{"name": "baseball", "price": "5.99", "quantity": "100"})
	require.NoError(t, err)
	product := created.(domain.Product)
	assert.Equal(t, 1, product.ID)
	assert.Equal(t, 100, product.Quantity)
	assert.True(t, product.Price.Equal(domain.MustPrice("5.99")))

	got, err := run(t, a["get"], domain.Params{"id": "1"})
	require.NoError(t, err)
	assert.Equal(t, product, got)

	updated, err := run(t, a["update"], domain.Params{"id": 1, "quantity": 99.0})
	require.NoError(t, err)
	assert.Equal(t, 99, updated.(domain.Product).Quantity)
	assert.Equal(t, "baseball", updated.(domain.Product).Name, "absent fields are left unchanged")

	all, err := run(t, a["find"], nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	removed, err := run(t, a["remove"], domain.Params{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, removed.(domain.Product).ID)

	_, err = run(t, a["get"], domain.Params{"id": 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestComponent_InvalidParams(t *testing.T) {
	a := actions(memory.NewStore())

	_, err := run(t, a["get"], domain.Params{})
	assert.ErrorIs(t, err, domain.ErrInvalidParams, "id is mandatory")

	_, err = run(t, a["get"], domain.Params{"id": "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = run(t, a["create"], domain.Params{"name": "x", "price": "cheap"})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}
