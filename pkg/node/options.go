package node

import (
	"log/slog"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
)

// DefaultCallTimeout bounds calls issued without a context deadline.
const DefaultCallTimeout = 10 * time.Second

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithLifecycleHooks registers callbacks for calls and readiness transitions.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(n *Node) {
		n.hooks = hooks
	}
}

// WithCallTimeout sets the timeout of calls whose context has no deadline.
// Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(n *Node) {
		n.callTimeout = d
	}
}
