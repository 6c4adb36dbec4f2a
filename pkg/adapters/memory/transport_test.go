package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/meshwork/pkg/adapters/memory"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
)

func TestMemoryTransport_Contract(t *testing.T) {
	tests.TransportContractTest(t, memory.NewTransport())
}

func TestMemoryTransport_Closed(t *testing.T) {
	transport := memory.NewTransport()
	_, err := transport.Subscribe(context.Background(), "node-1", func(domain.Message) {})
	assert.NoError(t, err)
	assert.NoError(t, transport.Close())

	err = transport.Send(context.Background(), "node-1", domain.Message{Kind: domain.KindRequest})
	assert.ErrorIs(t, err, memory.ErrTransportClosed)

	_, err = transport.Subscribe(context.Background(), "node-2", func(domain.Message) {})
	assert.ErrorIs(t, err, memory.ErrTransportClosed)
}
