package ports

import (
	"context"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
)

// Directory is the mesh-wide table of registered services. Every node of a
// mesh shares one Directory, which is what makes service names unique across
// nodes and readiness observable by dependents on other nodes.
type Directory interface {
	// Register adds a pending record. It fails with domain.ErrDuplicateService
	// when the name is taken and with a *domain.CycleError when the record's
	// dependencies close a cycle; on failure nothing is stored.
	Register(ctx context.Context, rec domain.ServiceRecord) error

	// Unregister removes the record if it is still owned by nodeID.
	Unregister(ctx context.Context, name, nodeID string) error

	// Lookup returns the record of a service or domain.ErrServiceNotFound.
	Lookup(ctx context.Context, name string) (domain.ServiceRecord, error)

	// List returns every record sorted by name.
	List(ctx context.Context) ([]domain.ServiceRecord, error)

	// SetReadiness moves a pending record to a terminal readiness and publishes
	// the change. Transitions out of a terminal state are ignored.
	SetReadiness(ctx context.Context, name string, readiness domain.Readiness) error

	// Watch streams readiness changes published after it returns. The channel
	// is closed when ctx is done.
	Watch(ctx context.Context) (<-chan domain.ReadinessEvent, error)
}

// Heartbeater is implemented by directories shared between processes. Records
// of a node whose heartbeat lapses are treated as absent, so a crashed node
// does not hold its service names forever. Owners call Heartbeat every
// HeartbeatInterval while they host services.
type Heartbeater interface {
	Heartbeat(ctx context.Context, nodeID string) error
	HeartbeatInterval() time.Duration
}
