package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const directoryLock = "directory"

// DefaultHeartbeatTTL is how long records survive their node's last heartbeat.
const DefaultHeartbeatTTL = 15 * time.Second

// Directory implements ports.Directory using Redis: records live in one hash,
// readiness changes are published on a channel, and every mutation runs under
// a mesh-wide lock so registration checks see a consistent table. Each node
// keeps a heartbeat key with a TTL; records of a node without one are ignored
// and pruned on the next registration.
type Directory struct {
	client       *backend.Client
	prefix       string
	locker       ports.DistributedLocker
	heartbeatTTL time.Duration
}

var (
	_ ports.Directory   = (*Directory)(nil)
	_ ports.Heartbeater = (*Directory)(nil)
)

// NewDirectory creates a directory from an existing client.
func NewDirectory(client *backend.Client, opts ...Option) *Directory {
	o := applyOptions(client, opts)
	return &Directory{
		client:       client,
		prefix:       o.prefix,
		locker:       o.locker,
		heartbeatTTL: o.heartbeatTTL,
	}
}

func (d *Directory) recordsKey() string {
	return d.prefix + "services"
}

func (d *Directory) channel() string {
	return d.prefix + "readiness"
}

func (d *Directory) heartbeatKey(nodeID string) string {
	return d.prefix + "node:" + nodeID
}

// Heartbeat marks nodeID alive for the heartbeat TTL.
func (d *Directory) Heartbeat(ctx context.Context, nodeID string) error {
	if err := d.client.Set(ctx, d.heartbeatKey(nodeID), "alive", d.heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh heartbeat of %s: %w", nodeID, err)
	}
	return nil
}

// HeartbeatInterval leaves room for two missed beats within the TTL.
func (d *Directory) HeartbeatInterval() time.Duration {
	return d.heartbeatTTL / 3
}

// Register adds a pending record after checking name uniqueness and cycles
// against the records of live nodes.
func (d *Directory) Register(ctx context.Context, rec domain.ServiceRecord) error {
	return withLock(ctx, d.locker, directoryLock, func() error {
		all, err := d.records(ctx)
		if err != nil {
			return err
		}
		live, stale, err := d.partition(ctx, all)
		if err != nil {
			return err
		}
		if err := domain.CheckRegistration(live, rec); err != nil {
			return err
		}

		if len(stale) > 0 {
			names := make([]string, len(stale))
			for i, r := range stale {
				names[i] = r.Name
			}
			if err := d.client.HDel(ctx, d.recordsKey(), names...).Err(); err != nil {
				return fmt.Errorf("failed to prune stale records: %w", err)
			}
		}
		if err := d.Heartbeat(ctx, rec.NodeID); err != nil {
			return err
		}
		rec.Readiness = domain.ReadinessPending
		return d.put(ctx, rec)
	})
}

// Unregister removes the record if nodeID still owns it.
func (d *Directory) Unregister(ctx context.Context, name, nodeID string) error {
	return withLock(ctx, d.locker, directoryLock, func() error {
		rec, err := d.record(ctx, name)
		if err != nil {
			return nil
		}
		if rec.NodeID != nodeID {
			return nil
		}
		if err := d.client.HDel(ctx, d.recordsKey(), name).Err(); err != nil {
			return fmt.Errorf("failed to unregister %s: %w", name, err)
		}
		return nil
	})
}

// Lookup returns the record of a service hosted by a live node.
func (d *Directory) Lookup(ctx context.Context, name string) (domain.ServiceRecord, error) {
	rec, err := d.record(ctx, name)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	alive, err := d.alive(ctx, []domain.ServiceRecord{rec})
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if !alive[rec.NodeID] {
		return domain.ServiceRecord{}, fmt.Errorf("%w: %s (node %s has no heartbeat)", domain.ErrServiceNotFound, name, rec.NodeID)
	}
	return rec, nil
}

// List returns the records of live nodes sorted by name.
func (d *Directory) List(ctx context.Context) ([]domain.ServiceRecord, error) {
	all, err := d.records(ctx)
	if err != nil {
		return nil, err
	}
	live, _, err := d.partition(ctx, all)
	if err != nil {
		return nil, err
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].Name < live[j].Name
	})
	return live, nil
}

// record reads one record regardless of its node's heartbeat.
func (d *Directory) record(ctx context.Context, name string) (domain.ServiceRecord, error) {
	val, err := d.client.HGet(ctx, d.recordsKey(), name).Result()
	if err != nil {
		if err == backend.Nil {
			return domain.ServiceRecord{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
		}
		return domain.ServiceRecord{}, fmt.Errorf("failed to lookup %s: %w", name, err)
	}

	var rec domain.ServiceRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return domain.ServiceRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}

// records reads the whole hash regardless of heartbeats.
func (d *Directory) records(ctx context.Context) ([]domain.ServiceRecord, error) {
	all, err := d.client.HGetAll(ctx, d.recordsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	records := make([]domain.ServiceRecord, 0, len(all))
	for _, val := range all {
		var rec domain.ServiceRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// partition splits records by whether their node still has a heartbeat.
func (d *Directory) partition(ctx context.Context, records []domain.ServiceRecord) (live, stale []domain.ServiceRecord, err error) {
	alive, err := d.alive(ctx, records)
	if err != nil {
		return nil, nil, err
	}
	live = make([]domain.ServiceRecord, 0, len(records))
	for _, rec := range records {
		if alive[rec.NodeID] {
			live = append(live, rec)
		} else {
			stale = append(stale, rec)
		}
	}
	return live, stale, nil
}

// alive checks the heartbeat key of every node owning one of the records.
func (d *Directory) alive(ctx context.Context, records []domain.ServiceRecord) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(records) == 0 {
		return out, nil
	}

	cmds := make(map[string]*backend.IntCmd)
	pipe := d.client.Pipeline()
	for _, rec := range records {
		if _, ok := cmds[rec.NodeID]; !ok {
			cmds[rec.NodeID] = pipe.Exists(ctx, d.heartbeatKey(rec.NodeID))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check node heartbeats: %w", err)
	}
	for nodeID, cmd := range cmds {
		out[nodeID] = cmd.Val() > 0
	}
	return out, nil
}

// SetReadiness applies a monotonic transition and publishes it.
func (d *Directory) SetReadiness(ctx context.Context, name string, readiness domain.Readiness) error {
	return withLock(ctx, d.locker, directoryLock, func() error {
		rec, err := d.record(ctx, name)
		if err != nil {
			return err
		}
		if !rec.Readiness.CanTransition(readiness) {
			return nil
		}
		rec.Readiness = readiness
		if err := d.put(ctx, rec); err != nil {
			return err
		}

		event, err := json.Marshal(domain.ReadinessEvent{Service: name, NodeID: rec.NodeID, Readiness: readiness})
		if err != nil {
			return fmt.Errorf("failed to marshal readiness event: %w", err)
		}
		if err := d.client.Publish(ctx, d.channel(), event).Err(); err != nil {
			return fmt.Errorf("failed to publish readiness: %w", err)
		}
		return nil
	})
}

// Watch subscribes to readiness events. The subscription is confirmed before
// Watch returns, so no event published afterwards is missed.
func (d *Directory) Watch(ctx context.Context) (<-chan domain.ReadinessEvent, error) {
	pubsub := d.client.Subscribe(ctx, d.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to readiness: %w", err)
	}

	out := make(chan domain.ReadinessEvent, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var ev domain.ReadinessEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (d *Directory) put(ctx context.Context, rec domain.ServiceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := d.client.HSet(ctx, d.recordsKey(), rec.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to store record %s: %w", rec.Name, err)
	}
	return nil
}
