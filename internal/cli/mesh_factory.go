package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/meshwork"
	"github.com/aretw0/meshwork/internal/config"
	"github.com/aretw0/meshwork/pkg/adapters/memory"
	redisadapter "github.com/aretw0/meshwork/pkg/adapters/redis"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/observability"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/aretw0/meshwork/pkg/services/db"
	"github.com/aretw0/meshwork/pkg/services/gateway"
	"github.com/aretw0/meshwork/pkg/services/products"
	backend "github.com/redis/go-redis/v9"
)

// MeshBuild is a mesh assembled from configuration, not yet started.
type MeshBuild struct {
	Mesh    *meshwork.Mesh
	Metrics *observability.Metrics
	// Gateway is set when one of the selected nodes hosts it.
	Gateway *gateway.Service
	Routes  []domain.Route

	closers []func() error
}

// Close releases the backend connections opened for the mesh.
func (b *MeshBuild) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// buildMesh creates transport, directory, storage and nodes from cfg.
func buildMesh(ctx context.Context, cfg config.Config, logger *slog.Logger, debug bool) (*MeshBuild, error) {
	routes, err := cfg.Routes()
	if err != nil {
		return nil, err
	}
	build := &MeshBuild{
		Metrics: observability.NewMetrics(),
		Routes:  routes,
	}

	var client *backend.Client
	if cfg.Transport == config.KindRedis || cfg.Storage == config.KindRedis {
		client = redisadapter.NewClient(cfg.Redis.Addr, "", 0)
		build.closers = append(build.closers, client.Close)
	}
	prefix := redisadapter.WithPrefix(cfg.Redis.Prefix)

	meshOpts := []meshwork.Option{
		meshwork.WithLogger(logger),
		meshwork.WithCallTimeout(time.Duration(cfg.CallTimeout)),
	}
	hooks := build.Metrics.Hooks()
	if debug {
		hooks = domain.ChainHooks(hooks, createDebugHooks(logger))
	}
	meshOpts = append(meshOpts, meshwork.WithLifecycleHooks(hooks))

	if cfg.Transport == config.KindRedis {
		transport := redisadapter.NewTransport(client, prefix)
		build.closers = append(build.closers, transport.Close)
		meshOpts = append(meshOpts,
			meshwork.WithTransport(transport),
			meshwork.WithDirectory(redisadapter.NewDirectory(client, prefix)),
		)
	}
	build.Mesh = meshwork.New(meshOpts...)

	// fail removes every service registered so far before releasing backends.
	fail := func(err error) (*MeshBuild, error) {
		return nil, errors.Join(err, build.Mesh.Stop(context.WithoutCancel(ctx)), build.Close())
	}

	var store ports.ProductStore = memory.NewStore()
	if cfg.Storage == config.KindRedis {
		store = redisadapter.NewStore(client, prefix)
	}

	for _, spec := range cfg.Nodes {
		n, err := build.Mesh.AddNode(ctx, spec.ID)
		if err != nil {
			return fail(err)
		}
		for _, name := range spec.Services {
			var svc ports.Service
			switch name {
			case config.ServiceDB:
				svc = db.New(store)
			case config.ServiceProducts:
				svc = products.New()
			case config.ServiceGateway:
				build.Gateway = gateway.New(n,
					gateway.WithAddress(cfg.Gateway.Address),
					gateway.WithRoutes(routes),
					gateway.WithLogger(logger.With("service", gateway.Name)),
					gateway.WithMetricsHandler(build.Metrics.Handler()),
					gateway.WithVersion(meshwork.Version),
				)
				svc = build.Gateway
			default:
				return fail(fmt.Errorf("node %s: unknown service %q", spec.ID, name))
			}
			if err := n.AddService(ctx, svc); err != nil {
				return fail(fmt.Errorf("node %s: %w", spec.ID, err))
			}
		}
	}
	return build, nil
}
