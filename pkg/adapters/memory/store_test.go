package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunProductStoreContract(t, store)
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, domain.ProductInput{Name: "widget", Price: domain.MustPrice("1.00"), Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	products, err := store.Find(ctx)
	require.NoError(t, err)
	require.Len(t, products, 50)
	assert.Equal(t, 1, products[0].ID)
	assert.Equal(t, 50, products[49].ID)
}
