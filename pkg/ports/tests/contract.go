package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contractWait = 2 * time.Second

// TransportContractTest is a reusable test suite that verifies if an adapter complies with ports.Transport.
func TransportContractTest(t *testing.T, transport ports.Transport) {
	t.Helper()
	ctx := context.Background()

	inbox := make(chan domain.Message, 4)
	unsubscribe, err := transport.Subscribe(ctx, "contract-b", func(msg domain.Message) {
		inbox <- msg
	})
	require.NoError(t, err)

	t.Run("Send_Delivers", func(t *testing.T) {
		msg := domain.Message{
			Kind:    domain.KindRequest,
			ID:      "corr-1",
			Sender:  "contract-a",
			Service: "db",
			Action:  "find",
			Payload: []byte(`{"id":7}`),
		}
		require.NoError(t, transport.Send(ctx, "contract-b", msg))

		select {
		case got := <-inbox:
			assert.Equal(t, domain.KindRequest, got.Kind)
			assert.Equal(t, "corr-1", got.ID)
			assert.Equal(t, "contract-a", got.Sender)
			assert.Equal(t, "db", got.Service)
			assert.Equal(t, "find", got.Action)
			assert.JSONEq(t, `{"id":7}`, string(got.Payload))
		case <-time.After(contractWait):
			t.Fatal("message was not delivered")
		}
	})

	t.Run("Send_Unreachable", func(t *testing.T) {
		err := transport.Send(ctx, "contract-missing", domain.Message{Kind: domain.KindRequest, ID: "corr-2"})
		assert.ErrorIs(t, err, domain.ErrUnreachable)
	})

	t.Run("Subscribe_Twice", func(t *testing.T) {
		_, err := transport.Subscribe(ctx, "contract-b", func(domain.Message) {})
		assert.Error(t, err, "a node ID can be subscribed only once")
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		require.NoError(t, unsubscribe())

		require.Eventually(t, func() bool {
			err := transport.Send(ctx, "contract-b", domain.Message{Kind: domain.KindRequest, ID: "corr-3"})
			return err != nil
		}, contractWait, 20*time.Millisecond)

		err := transport.Send(ctx, "contract-b", domain.Message{Kind: domain.KindRequest, ID: "corr-4"})
		assert.ErrorIs(t, err, domain.ErrUnreachable)
	})
}

// DirectoryContractTest is a reusable test suite that verifies if an adapter complies with ports.Directory.
// The directory must be empty.
func DirectoryContractTest(t *testing.T, dir ports.Directory) {
	t.Helper()
	ctx := context.Background()

	t.Run("Register_Lookup", func(t *testing.T) {
		err := dir.Register(ctx, domain.ServiceRecord{Name: "db", NodeID: "node-2", Actions: []string{"find", "get"}})
		require.NoError(t, err)

		rec, err := dir.Lookup(ctx, "db")
		require.NoError(t, err)
		assert.Equal(t, "node-2", rec.NodeID)
		assert.Equal(t, []string{"find", "get"}, rec.Actions)
		assert.Equal(t, domain.ReadinessPending, rec.Readiness)
	})

	t.Run("Lookup_NotFound", func(t *testing.T) {
		_, err := dir.Lookup(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrServiceNotFound)
	})

	t.Run("Register_Duplicate", func(t *testing.T) {
		err := dir.Register(ctx, domain.ServiceRecord{Name: "db", NodeID: "node-9"})
		assert.ErrorIs(t, err, domain.ErrDuplicateService)

		rec, err := dir.Lookup(ctx, "db")
		require.NoError(t, err)
		assert.Equal(t, "node-2", rec.NodeID, "the original record must be untouched")
	})

	t.Run("Register_Cycle", func(t *testing.T) {
		require.NoError(t, dir.Register(ctx, domain.ServiceRecord{Name: "alpha", NodeID: "node-1", Dependencies: []string{"beta"}}))

		err := dir.Register(ctx, domain.ServiceRecord{Name: "beta", NodeID: "node-3", Dependencies: []string{"alpha"}})
		require.ErrorIs(t, err, domain.ErrCyclicDependency)

		var cycleErr *domain.CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Contains(t, cycleErr.Cycle, "alpha")
		assert.Contains(t, cycleErr.Cycle, "beta")

		_, err = dir.Lookup(ctx, "beta")
		assert.ErrorIs(t, err, domain.ErrServiceNotFound, "a rejected registration must leave no record")
		require.NoError(t, dir.Unregister(ctx, "alpha", "node-1"))
	})

	t.Run("Register_SelfDependency", func(t *testing.T) {
		err := dir.Register(ctx, domain.ServiceRecord{Name: "ouroboros", NodeID: "node-1", Dependencies: []string{"ouroboros"}})
		assert.ErrorIs(t, err, domain.ErrCyclicDependency)
	})

	t.Run("SetReadiness_Publishes", func(t *testing.T) {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		events, err := dir.Watch(watchCtx)
		require.NoError(t, err)

		require.NoError(t, dir.SetReadiness(ctx, "db", domain.ReadinessReady))

		select {
		case ev := <-events:
			assert.Equal(t, "db", ev.Service)
			assert.Equal(t, "node-2", ev.NodeID)
			assert.Equal(t, domain.ReadinessReady, ev.Readiness)
		case <-time.After(contractWait):
			t.Fatal("readiness event was not published")
		}

		rec, err := dir.Lookup(ctx, "db")
		require.NoError(t, err)
		assert.Equal(t, domain.ReadinessReady, rec.Readiness)
	})

	t.Run("SetReadiness_Monotonic", func(t *testing.T) {
		require.NoError(t, dir.SetReadiness(ctx, "db", domain.ReadinessFailed))
		require.NoError(t, dir.SetReadiness(ctx, "db", domain.ReadinessPending))

		rec, err := dir.Lookup(ctx, "db")
		require.NoError(t, err)
		assert.Equal(t, domain.ReadinessReady, rec.Readiness, "ready never reverts")
	})

	t.Run("SetReadiness_Unknown", func(t *testing.T) {
		err := dir.SetReadiness(ctx, "nope", domain.ReadinessReady)
		assert.ErrorIs(t, err, domain.ErrServiceNotFound)
	})

	t.Run("List_Sorted", func(t *testing.T) {
		require.NoError(t, dir.Register(ctx, domain.ServiceRecord{Name: "products", NodeID: "node-3", Dependencies: []string{"db"}}))
		require.NoError(t, dir.Register(ctx, domain.ServiceRecord{Name: "gateway", NodeID: "node-1"}))

		records, err := dir.List(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(records))
		for _, rec := range records {
			names = append(names, rec.Name)
		}
		assert.Equal(t, []string{"db", "gateway", "products"}, names)
	})

	t.Run("Unregister", func(t *testing.T) {
		require.NoError(t, dir.Unregister(ctx, "gateway", "node-7"))
		_, err := dir.Lookup(ctx, "gateway")
		require.NoError(t, err, "only the owning node can unregister")

		require.NoError(t, dir.Unregister(ctx, "gateway", "node-1"))
		_, err = dir.Lookup(ctx, "gateway")
		assert.ErrorIs(t, err, domain.ErrServiceNotFound)
	})

	t.Run("Watch_ClosesOnCancel", func(t *testing.T) {
		watchCtx, cancel := context.WithCancel(ctx)
		events, err := dir.Watch(watchCtx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(contractWait):
			t.Fatal("watch channel was not closed")
		}
	})
}
