package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
)

// ErrTransportClosed is returned by a closed Transport.
var ErrTransportClosed = errors.New("transport closed")

// Transport implements ports.Transport as an in-process bus shared by every
// node of a mesh. Each delivery runs on its own goroutine, so handlers never
// run on the sender's stack.
type Transport struct {
	mu       sync.RWMutex
	handlers map[string]ports.MessageHandler
	closed   bool
}

// NewTransport creates an empty bus.
func NewTransport() *Transport {
	return &Transport{
		handlers: make(map[string]ports.MessageHandler),
	}
}

// Send delivers msg to the handler subscribed as nodeID.
func (t *Transport) Send(ctx context.Context, nodeID string, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	handler, ok := t.handlers[nodeID]
	closed := t.closed
	t.mu.RUnlock()

	if closed {
		return ErrTransportClosed
	}
	if !ok {
		return fmt.Errorf("%w: no subscriber for node %s", domain.ErrUnreachable, nodeID)
	}

	go handler(msg)
	return nil
}

// Subscribe registers the handler for nodeID.
func (t *Transport) Subscribe(ctx context.Context, nodeID string, handler ports.MessageHandler) (ports.UnsubscribeFunc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if _, exists := t.handlers[nodeID]; exists {
		return nil, fmt.Errorf("node %s is already subscribed", nodeID)
	}
	t.handlers[nodeID] = handler

	var once sync.Once
	return func() error {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.handlers, nodeID)
		})
		return nil
	}, nil
}

// Close detaches every node.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.handlers = make(map[string]ports.MessageHandler)
	return nil
}
