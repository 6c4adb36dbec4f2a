package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the Redis adapters.
const DefaultPrefix = "meshwork:"

// Store implements ports.ProductStore using Redis. Products are JSON values
// indexed by a sorted set scored by id.
type Store struct {
	client *backend.Client
	prefix string
	locker ports.DistributedLocker
}

type Option func(*options)

type options struct {
	prefix       string
	locker       ports.DistributedLocker
	heartbeatTTL time.Duration
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithHeartbeatTTL sets how long directory records outlive the last
// heartbeat of their node.
func WithHeartbeatTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.heartbeatTTL = ttl
	}
}

// WithLocker replaces the default Redis locker.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

func applyOptions(client *backend.Client, opts []Option) options {
	o := options{prefix: DefaultPrefix, heartbeatTTL: DefaultHeartbeatTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = NewLocker(client, o.prefix)
	}
	return o
}

// NewClient creates a Redis client for the given address.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewStore creates a new Redis product store from an existing client.
func NewStore(client *backend.Client, opts ...Option) *Store {
	o := applyOptions(client, opts)
	return &Store{
		client: client,
		prefix: o.prefix,
		locker: o.locker,
	}
}

func (s *Store) key(id int) string {
	return s.prefix + "product:" + strconv.Itoa(id)
}

func (s *Store) indexKey() string {
	return s.prefix + "product:index"
}

func (s *Store) seqKey() string {
	return s.prefix + "product:seq"
}

// Find returns every product ordered by id.
func (s *Store) Find(ctx context.Context) ([]domain.Product, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + "product:" + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	products := make([]domain.Product, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // removed between ZRANGE and MGET
		}
		var p domain.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}

// Get retrieves a product by id.
func (s *Store) Get(ctx context.Context, id int) (domain.Product, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		return domain.Product{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return domain.Product{}, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return p, nil
}

// Create assigns the next id with INCR and stores the product.
func (s *Store) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to allocate product id: %w", err)
	}

	p := in.NewProduct(int(id))
	if err := s.save(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// Update applies a patch under the product's lock.
func (s *Store) Update(ctx context.Context, id int, patch domain.ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := withLock(ctx, s.locker, "product:"+strconv.Itoa(id), func() error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		return s.save(ctx, updated)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// Remove deletes a product under its lock and returns it.
func (s *Store) Remove(ctx context.Context, id int) (domain.Product, error) {
	var removed domain.Product
	err := withLock(ctx, s.locker, "product:"+strconv.Itoa(id), func() error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), strconv.Itoa(id))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove from redis: %w", err)
		}
		removed = current
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return removed, nil
}

func (s *Store) save(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(p.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(p.ID),
		Member: strconv.Itoa(p.ID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Ping checks the connection to Redis.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
