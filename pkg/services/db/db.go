// Package db implements the "db" service: CRUD actions over a ProductStore.
package db

import (
	"context"
	"fmt"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/services/crud"
)

// Name is the service name other services call.
const Name = "db"

// Pinger is implemented by stores backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service exposes a ProductStore as find/get/create/update/remove.
type Service struct {
	store ports.ProductStore
	crud  *crud.Component[domain.Product, domain.ProductInput, domain.ProductPatch]
}

// New creates the db service over store.
func New(store ports.ProductStore) *Service {
	return &Service{
		store: store,
		crud:  crud.New[domain.Product, domain.ProductInput, domain.ProductPatch](store),
	}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Dependencies() []string {
	return nil
}

func (s *Service) Actions() []ports.ActionDef {
	return s.crud.Actions()
}

// Start checks that the store is reachable.
func (s *Service) Start(ctx context.Context) error {
	pinger, ok := s.store.(Pinger)
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	return nil
}
