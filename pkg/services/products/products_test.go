package products_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/node"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/services/db"
	"github.com/aretw0/meshwork/pkg/services/products"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// slowStore delays Create to simulate a stalled database.
type slowStore struct {
	*memory.Store
	delay time.Duration
}

func (s slowStore) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return domain.Product{}, ctx.Err()
	}
	return s.Store.Create(ctx, in)
}

// startMesh runs the client on node-1, db on node-2 and products on node-3.
func startMesh(t *testing.T, store ports.ProductStore, opts ...products.Option) *node.Node {
	t.Helper()
	transport := memory.NewTransport()
	dir := memory.NewDirectory()
	ctx := context.Background()

	client := node.New("node-1", transport, dir)
	dbNode := node.New("node-2", transport, dir)
	productsNode := node.New("node-3", transport, dir)
	require.NoError(t, dbNode.AddService(ctx, db.New(store)))
	require.NoError(t, productsNode.AddService(ctx, products.New(opts...)))

	nodes := []*node.Node{client, dbNode, productsNode}
	t.Cleanup(func() {
		for _, n := range nodes {
			_ = n.Stop(context.Background())
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		g.Go(func() error { return n.Start(gctx) })
	}
	require.NoError(t, g.Wait())
	return client
}

func decode[T any](t *testing.T, result any) T {
	t.Helper()
	var out T
	require.NoError(t, domain.DecodeResult(result, &out))
	return out
}

func TestProducts_CreateProduct(t *testing.T) {
	client := startMesh(t, memory.NewStore())

	result, err := client.Call(context.Background(), "products", "createProduct", domain.Params{
		"name": "baseball", "price": "5.99", "quantity": "100", "ignored": true,
	})
	require.NoError(t, err)

	pair := decode[[]any](t, result)
	require.Len(t, pair, 2)
	assert.Equal(t, products.Confirmation{Message: "Product created!"}, decode[products.Confirmation](t, pair[0]))

	product := decode[domain.Product](t, pair[1])
	assert.Equal(t, 1, product.ID)
	assert.Equal(t, "baseball", product.Name)
	assert.True(t, product.Price.Equal(domain.MustPrice("5.99")))
	assert.Equal(t, 100, product.Quantity)
}

func TestProducts_SeedProducts(t *testing.T) {
	client := startMesh(t, memory.NewStore())
	ctx := context.Background()

	result, err := client.Call(ctx, "products", "seedProducts", nil)
	require.NoError(t, err)
	assert.Equal(t, products.Confirmation{Message: "Products seeded!"}, decode[products.Confirmation](t, result))

	result, err = client.Call(ctx, "products", "listProducts", nil)
	require.NoError(t, err)
	list := decode[[]domain.Product](t, result)
	require.Len(t, list, 4)

	for i, want := range products.Seed {
		assert.Equal(t, i+1, list[i].ID, "seeding is sequential")
		assert.Equal(t, want.Name, list[i].Name)
		assert.True(t, want.Price.Equal(list[i].Price), "price of %s", want.Name)
		assert.Equal(t, want.Quantity, list[i].Quantity)
	}
}

func TestProducts_FindUpdateDelete(t *testing.T) {
	client := startMesh(t, memory.NewStore())
	ctx := context.Background()

	_, err := client.Call(ctx, "products", "seedProducts", nil)
	require.NoError(t, err)

	result, err := client.Call(ctx, "products", "findProduct", domain.Params{"id": "3"})
	require.NoError(t, err)
	assert.Equal(t, "comb", decode[domain.Product](t, result).Name)

	result, err = client.Call(ctx, "products", "updateProduct", domain.Params{"id": "3", "quantity": 10})
	require.NoError(t, err)
	pair := decode[[]any](t, result)
	assert.Equal(t, "Product updated!", decode[products.Confirmation](t, pair[0]).Message)
	updated := decode[domain.Product](t, pair[1])
	assert.Equal(t, 10, updated.Quantity)
	assert.Equal(t, "comb", updated.Name)

	result, err = client.Call(ctx, "products", "deleteProduct", domain.Params{"id": "3"})
	require.NoError(t, err)
	pair = decode[[]any](t, result)
	assert.Equal(t, "Product deleted!", decode[products.Confirmation](t, pair[0]).Message)
	assert.Equal(t, 3, decode[domain.Product](t, pair[1]).ID)

	_, err = client.Call(ctx, "products", "findProduct", domain.Params{"id": "3"})
	assert.ErrorIs(t, err, domain.ErrNotFound, "not found survives two hops")
}

func TestProducts_CreateTimesOut(t *testing.T) {
	client := startMesh(t, slowStore{Store: memory.NewStore(), delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, "products", "createProduct", domain.Params{"name": "hat", "price": 10.99, "quantity": 164})
	assert.ErrorIs(t, err, domain.ErrRemoteTimeout)
}

func TestProducts_DBTimeoutReportedByProductsNode(t *testing.T) {
	client := startMesh(t, slowStore{Store: memory.NewStore(), delay: time.Second}, products.WithDBTimeout(100*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := client.Call(ctx, "products", "createProduct", domain.Params{"name": "hat", "price": 10.99, "quantity": 164})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// products answered with the timeout of its own db call.
	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote), "got %v", err)
	assert.Equal(t, "node-3", remote.NodeID)
	assert.Equal(t, domain.CodeRemoteTimeout, remote.Code)
	assert.ErrorIs(t, err, domain.ErrRemoteTimeout)
}
