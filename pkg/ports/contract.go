package ports

import (
	"context"
	"testing"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProductStoreContract runs a suite of tests to verify that a ProductStore
// implementation adheres to the defined interface contract. The store must be empty.
func RunProductStoreContract(t *testing.T, store ProductStore) {
	ctx := context.Background()

	t.Run("Create assigns increasing ids", func(t *testing.T) {
		first, err := store.Create(ctx, domain.ProductInput{Name: "baseball", Price: domain.MustPrice("5.99"), Quantity: 100})
		require.NoError(t, err)
		second, err := store.Create(ctx, domain.ProductInput{Name: "magazine", Price: domain.MustPrice("3.99"), Quantity: 123})
		require.NoError(t, err)

		assert.Positive(t, first.ID)
		assert.Greater(t, second.ID, first.ID)
		assert.Equal(t, "magazine", second.Name)
		assert.True(t, second.Price.Equal(domain.MustPrice("3.99")))
	})

	t.Run("Get", func(t *testing.T) {
		created, err := store.Create(ctx, domain.ProductInput{Name: "comb", Price: domain.MustPrice("2.25"), Quantity: 1560})
		require.NoError(t, err)

		loaded, err := store.Get(ctx, created.ID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, created.ID, loaded.ID)
		assert.Equal(t, "comb", loaded.Name)
		assert.Equal(t, 1560, loaded.Quantity)
		assert.True(t, loaded.Price.Equal(domain.MustPrice("2.25")))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Find returns products ordered by id", func(t *testing.T) {
		products, err := store.Find(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, products)
		for i := 1; i < len(products); i++ {
			assert.Less(t, products[i-1].ID, products[i].ID)
		}
	})

	t.Run("Update applies only provided fields", func(t *testing.T) {
		created, err := store.Create(ctx, domain.ProductInput{Name: "hat", Price: domain.MustPrice("10.99"), Quantity: 164})
		require.NoError(t, err)

		qty := 200
		updated, err := store.Update(ctx, created.ID, domain.ProductPatch{Quantity: &qty})
		require.NoError(t, err)
		assert.Equal(t, 200, updated.Quantity)
		assert.Equal(t, "hat", updated.Name)
		assert.True(t, updated.Price.Equal(domain.MustPrice("10.99")))

		loaded, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 200, loaded.Quantity)
	})

	t.Run("Update Non-Existent", func(t *testing.T) {
		name := "ghost"
		_, err := store.Update(ctx, 999999, domain.ProductPatch{Name: &name})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		created, err := store.Create(ctx, domain.ProductInput{Name: "scarf", Price: domain.MustPrice("7.50"), Quantity: 3})
		require.NoError(t, err)

		removed, err := store.Remove(ctx, created.ID)
		require.NoError(t, err, "Remove should not return error")
		assert.Equal(t, created.ID, removed.ID)
		assert.Equal(t, "scarf", removed.Name)

		_, err = store.Get(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Remove should return ErrNotFound")

		_, err = store.Remove(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
