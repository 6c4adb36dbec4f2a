// Package crud provides the find/get/create/update/remove actions shared by
// storage-backed services. A service composes a Component and exposes its
// actions next to its own.
package crud

import (
	"context"
	"fmt"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
)

// Store is the storage contract behind a Component. T is the entity, C the
// creation input and U the update patch.
type Store[T, C, U any] interface {
	Find(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int) (T, error)
	Create(ctx context.Context, in C) (T, error)
	Update(ctx context.Context, id int, patch U) (T, error)
	Remove(ctx context.Context, id int) (T, error)
}

// Component turns a Store into actions.
type Component[T, C, U any] struct {
	store Store[T, C, U]
}

// New creates a Component over store.
func New[T, C, U any](store Store[T, C, U]) *Component[T, C, U] {
	return &Component[T, C, U]{store: store}
}

// Actions returns find, get, create, update and remove, in that order.
func (c *Component[T, C, U]) Actions() []ports.ActionDef {
	return []ports.ActionDef{
		{Name: "find", Handler: c.find},
		{Name: "get", Handler: c.get},
		{Name: "create", Handler: c.create},
		{Name: "update", Handler: c.update},
		{Name: "remove", Handler: c.remove},
	}
}

type idParams struct {
	ID int `json:"id"`
}

// entityID reads the mandatory "id" parameter.
func entityID(params domain.Params) (int, error) {
	if _, ok := params["id"]; !ok {
		return 0, fmt.Errorf("%w: id is required", domain.ErrInvalidParams)
	}
	var p idParams
	if err := params.Decode(&p); err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (c *Component[T, C, U]) find(ctx context.Context, call *domain.CallContext) (any, error) {
	return c.store.Find(ctx)
}

func (c *Component[T, C, U]) get(ctx context.Context, call *domain.CallContext) (any, error) {
	id, err := entityID(call.Params)
	if err != nil {
		return nil, err
	}
	return c.store.Get(ctx, id)
}

func (c *Component[T, C, U]) create(ctx context.Context, call *domain.CallContext) (any, error) {
	var in C
	if err := call.Params.Decode(&in); err != nil {
		return nil, err
	}
	return c.store.Create(ctx, in)
}

func (c *Component[T, C, U]) update(ctx context.Context, call *domain.CallContext) (any, error) {
	id, err := entityID(call.Params)
	if err != nil {
		return nil, err
	}
	var patch U
	if err := call.Params.Decode(&patch); err != nil {
		return nil, err
	}
	return c.store.Update(ctx, id, patch)
}

func (c *Component[T, C, U]) remove(ctx context.Context, call *domain.CallContext) (any, error) {
	id, err := entityID(call.Params)
	if err != nil {
		return nil, err
	}
	return c.store.Remove(ctx, id)
}
