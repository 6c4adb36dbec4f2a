// Package products implements the "products" service. Every action delegates
// to the "db" service through the call context, so the service can run on any
// node of the mesh.
package products

import (
	"context"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/services/db"
)

// Name is the service name used by the gateway routes.
const Name = "products"

// Confirmation is the first element of create, update and delete results.
type Confirmation struct {
	Message string `json:"message"`
}

// Seed is the catalog inserted by seedProducts, in insertion order.
var Seed = []domain.ProductInput{
	{Name: "baseball", Price: domain.MustPrice("5.99"), Quantity: 100},
	{Name: "magazine", Price: domain.MustPrice("3.99"), Quantity: 123},
	{Name: "comb", Price: domain.MustPrice("2.25"), Quantity: 1560},
	{Name: "hat", Price: domain.MustPrice("10.99"), Quantity: 164},
}

var productFields = []string{"name", "price", "quantity"}

// Service is the products service.
type Service struct {
	dbTimeout time.Duration
}

// Option configures the products service.
type Option func(*Service)

// WithDBTimeout bounds every call to the db service. Zero leaves calls
// bounded only by the incoming deadline.
func WithDBTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.dbTimeout = d
	}
}

// New creates the products service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Dependencies() []string {
	return []string{db.Name}
}

func (s *Service) Actions() []ports.ActionDef {
	return []ports.ActionDef{
		{Name: "listProducts", Handler: s.listProducts},
		{Name: "findProduct", Handler: s.findProduct},
		{Name: "createProduct", Handler: s.createProduct},
		{Name: "updateProduct", Handler: s.updateProduct},
		{Name: "deleteProduct", Handler: s.deleteProduct},
		{Name: "seedProducts", Handler: s.seedProducts},
	}
}

func (s *Service) listProducts(ctx context.Context, call *domain.CallContext) (any, error) {
	return s.callDB(ctx, call, "find", nil)
}

func (s *Service) findProduct(ctx context.Context, call *domain.CallContext) (any, error) {
	return s.callDB(ctx, call, "get", call.Params.Pick("id"))
}

func (s *Service) createProduct(ctx context.Context, call *domain.CallContext) (any, error) {
	product, err := s.callDB(ctx, call, "create", call.Params.Pick(productFields...))
	if err != nil {
		return nil, err
	}
	return []any{Confirmation{Message: "Product created!"}, product}, nil
}

func (s *Service) updateProduct(ctx context.Context, call *domain.CallContext) (any, error) {
	product, err := s.callDB(ctx, call, "update", call.Params.Pick(append([]string{"id"}, productFields...)...))
	if err != nil {
		return nil, err
	}
	return []any{Confirmation{Message: "Product updated!"}, product}, nil
}

func (s *Service) deleteProduct(ctx context.Context, call *domain.CallContext) (any, error) {
	product, err := s.callDB(ctx, call, "remove", call.Params.Pick("id"))
	if err != nil {
		return nil, err
	}
	return []any{Confirmation{Message: "Product deleted!"}, product}, nil
}

// seedProducts inserts the seed catalog one product at a time.
func (s *Service) seedProducts(ctx context.Context, call *domain.CallContext) (any, error) {
	for _, in := range Seed {
		params := domain.Params{"name": in.Name, "price": in.Price, "quantity": in.Quantity}
		if _, err := s.callDB(ctx, call, "create", params); err != nil {
			return nil, err
		}
	}
	return Confirmation{Message: "Products seeded!"}, nil
}

func (s *Service) callDB(ctx context.Context, call *domain.CallContext, action string, params domain.Params) (any, error) {
	if s.dbTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.dbTimeout)
		defer cancel()
	}
	return call.Call(ctx, db.Name, action, params)
}
