package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// ErrTransportClosed is returned by a closed Transport.
var ErrTransportClosed = errors.New("transport closed")

// Transport implements ports.Transport over Redis pub/sub. Every node listens
// on its own channel; a publish that reaches no subscriber is reported as
// unreachable.
type Transport struct {
	client *backend.Client
	prefix string

	mu     sync.Mutex
	subs   map[string]*backend.PubSub
	closed bool
}

// NewTransport creates a transport from an existing client.
func NewTransport(client *backend.Client, opts ...Option) *Transport {
	o := applyOptions(client, opts)
	return &Transport{
		client: client,
		prefix: o.prefix,
		subs:   make(map[string]*backend.PubSub),
	}
}

func (t *Transport) channel(nodeID string) string {
	return t.prefix + "node:" + nodeID
}

// Send publishes msg on the node's channel.
func (t *Transport) Send(ctx context.Context, nodeID string, msg domain.Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	data, err := domain.EncodeMessage(msg)
	if err != nil {
		return err
	}

	receivers, err := t.client.Publish(ctx, t.channel(nodeID), data).Result()
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrUnreachable, nodeID, err)
	}
	if receivers == 0 {
		return fmt.Errorf("%w: no subscriber for node %s", domain.ErrUnreachable, nodeID)
	}
	return nil
}

// Subscribe listens on the node's channel. The subscription is confirmed
// before Subscribe returns.
func (t *Transport) Subscribe(ctx context.Context, nodeID string, handler ports.MessageHandler) (ports.UnsubscribeFunc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if _, exists := t.subs[nodeID]; exists {
		return nil, fmt.Errorf("node %s is already subscribed", nodeID)
	}

	pubsub := t.client.Subscribe(ctx, t.channel(nodeID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe node %s: %w", nodeID, err)
	}
	t.subs[nodeID] = pubsub

	go func() {
		for raw := range pubsub.Channel() {
			msg, err := domain.DecodeMessage([]byte(raw.Payload))
			if err != nil {
				continue
			}
			go handler(msg)
		}
	}()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			t.mu.Lock()
			if t.subs[nodeID] == pubsub {
				delete(t.subs, nodeID)
			}
			t.mu.Unlock()
			err = pubsub.Close()
		})
		return err
	}, nil
}

// Close detaches every node. The client itself is left open.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for id, pubsub := range t.subs {
		if err := pubsub.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(t.subs, id)
	}
	t.closed = true
	return errors.Join(errs...)
}
