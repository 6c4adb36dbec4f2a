package ports

import (
	"context"

	"github.com/aretw0/meshwork/pkg/domain"
)

// MessageHandler receives inbound Messages for a node. It is called from the
// transport's delivery goroutine and must not block.
type MessageHandler func(msg domain.Message)

// UnsubscribeFunc detaches a node from the transport.
type UnsubscribeFunc func() error

// Transport delivers addressed Messages between nodes. Delivery is at most
// once per attempt and the transport never retries.
type Transport interface {
	// Send delivers msg to the node subscribed as nodeID.
	// It returns an error wrapping domain.ErrUnreachable when no such node is reachable.
	Send(ctx context.Context, nodeID string, msg domain.Message) error

	// Subscribe registers the handler receiving every Message addressed to nodeID.
	// A node ID can be subscribed only once per transport.
	Subscribe(ctx context.Context, nodeID string, handler MessageHandler) (UnsubscribeFunc, error)

	// Close releases the transport's connections.
	Close() error
}
