package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/meshwork/pkg/domain"
)

// Store implements ports.ProductStore in memory.
// Safe for concurrent use.
type Store struct {
	data   map[int]domain.Product
	nextID int
	mu     sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[int]domain.Product),
	}
}

// Find returns every product ordered by id.
func (s *Store) Find(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.data))
	for _, p := range s.data {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID < products[j].ID
	})
	return products, nil
}

// Get retrieves a product by id.
func (s *Store) Get(ctx context.Context, id int) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// Create assigns the next id and stores the product.
func (s *Store) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p := in.NewProduct(s.nextID)
	s.data[p.ID] = p
	return p, nil
}

// Update applies a patch to a stored product.
func (s *Store) Update(ctx context.Context, id int, patch domain.ProductPatch) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	p = patch.Apply(p)
	s.data[id] = p
	return p, nil
}

// Remove deletes a product and returns it.
func (s *Store) Remove(ctx context.Context, id int) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	delete(s.data, id)
	return p, nil
}
