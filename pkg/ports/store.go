package ports

import (
	"context"

	"github.com/aretw0/meshwork/pkg/domain"
)

// ProductStore defines the storage adapter used by the "db" service.
type ProductStore interface {
	// Find returns every product ordered by id.
	Find(ctx context.Context) ([]domain.Product, error)

	// Get returns a product or domain.ErrNotFound.
	Get(ctx context.Context, id int) (domain.Product, error)

	// Create assigns the next id and persists the product.
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)

	// Update applies the patch and returns the stored product, or domain.ErrNotFound.
	Update(ctx context.Context, id int, patch domain.ProductPatch) (domain.Product, error)

	// Remove deletes a product and returns it, or domain.ErrNotFound.
	Remove(ctx context.Context, id int) (domain.Product, error)
}
