package ports

import (
	"context"

	"github.com/aretw0/meshwork/pkg/domain"
)

// Action handles one invocation. The returned value must be JSON encodable
// because remote callers receive it over the wire.
type Action func(ctx context.Context, call *domain.CallContext) (any, error)

// ActionDef names an Action within its service.
type ActionDef struct {
	Name    string
	Handler Action
}

// Service is a named, ordered set of actions hosted by exactly one node.
type Service interface {
	Name() string
	Dependencies() []string
	Actions() []ActionDef
}

// Starter is implemented by services with local initialization. Start runs
// once every dependency is ready; an error marks the service failed.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by services holding resources released on node stop.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Caller is the action-call entry point exposed by a node.
type Caller interface {
	Call(ctx context.Context, service, action string, params domain.Params) (any, error)
}
