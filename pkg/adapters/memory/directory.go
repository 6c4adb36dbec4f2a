package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/meshwork/pkg/domain"
)

// Directory implements ports.Directory in memory for meshes whose nodes share
// one process. Safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	records map[string]domain.ServiceRecord

	// subMu guards watchers separately so that publishing never holds mu.
	subMu    sync.RWMutex
	watchers map[int]*watcher
	nextID   int
}

type watcher struct {
	ch   chan domain.ReadinessEvent
	done <-chan struct{}
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		records:  make(map[string]domain.ServiceRecord),
		watchers: make(map[int]*watcher),
	}
}

// Register adds a pending record after checking name uniqueness and cycles.
func (d *Directory) Register(ctx context.Context, rec domain.ServiceRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := domain.CheckRegistration(d.snapshot(), rec); err != nil {
		return err
	}
	rec.Readiness = domain.ReadinessPending
	rec.Actions = append([]string(nil), rec.Actions...)
	rec.Dependencies = append([]string(nil), rec.Dependencies...)
	d.records[rec.Name] = rec
	return nil
}

// Unregister removes the record if nodeID still owns it.
func (d *Directory) Unregister(ctx context.Context, name, nodeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.records[name]; ok && rec.NodeID == nodeID {
		delete(d.records, name)
	}
	return nil
}

// Lookup returns a record by service name.
func (d *Directory) Lookup(ctx context.Context, name string) (domain.ServiceRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[name]
	if !ok {
		return domain.ServiceRecord{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
	}
	return rec, nil
}

// List returns every record sorted by name.
func (d *Directory) List(ctx context.Context) ([]domain.ServiceRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot(), nil
}

// SetReadiness applies a monotonic transition and notifies watchers.
func (d *Directory) SetReadiness(ctx context.Context, name string, readiness domain.Readiness) error {
	d.mu.Lock()
	rec, ok := d.records[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
	}
	if !rec.Readiness.CanTransition(readiness) {
		d.mu.Unlock()
		return nil
	}
	rec.Readiness = readiness
	d.records[name] = rec
	d.mu.Unlock()

	d.publish(domain.ReadinessEvent{Service: name, NodeID: rec.NodeID, Readiness: readiness})
	return nil
}

// Watch streams readiness events until ctx is done.
func (d *Directory) Watch(ctx context.Context) (<-chan domain.ReadinessEvent, error) {
	w := &watcher{
		ch:   make(chan domain.ReadinessEvent, 16),
		done: ctx.Done(),
	}

	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.watchers[id] = w
	d.subMu.Unlock()

	go func() {
		<-ctx.Done()
		d.subMu.Lock()
		delete(d.watchers, id)
		close(w.ch)
		d.subMu.Unlock()
	}()

	return w.ch, nil
}

func (d *Directory) publish(ev domain.ReadinessEvent) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()

	for _, w := range d.watchers {
		select {
		case w.ch <- ev:
		case <-w.done:
		}
	}
}

// snapshot must be called with mu held.
func (d *Directory) snapshot() []domain.ServiceRecord {
	records := make([]domain.ServiceRecord, 0, len(d.records))
	for _, rec := range d.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records
}
