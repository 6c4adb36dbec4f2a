package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/meshwork/internal/config"
	"github.com/aretw0/meshwork/internal/logging"
	redisadapter "github.com/aretw0/meshwork/pkg/adapters/redis"
	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log_level: warn
gateway:
  address: 127.0.0.1:0
nodes:
  - id: edge
    services: [gateway]
  - id: data
    services: [db, products]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildMesh_Memory(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	ctx := context.Background()

	build, err := buildMesh(ctx, cfg, logging.NewNop(), true)
	require.NoError(t, err)
	defer build.Close()

	require.NotNil(t, build.Gateway)
	assert.Len(t, build.Mesh.Nodes(), 2)
	assert.NotEmpty(t, build.Routes)

	require.NoError(t, build.Mesh.Start(ctx))
	defer build.Mesh.Stop(context.Background())

	result, err := build.Mesh.Call(ctx, "products", "seedProducts", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.NotEmpty(t, build.Gateway.Addr())
}

func TestBuildMesh_FailureReleasesRegisteredServices(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Transport = config.KindRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Nodes = []config.Node{
		{ID: "node-2", Services: []string{config.ServiceProducts}},
		{ID: "node-3", Services: []string{config.ServiceDB}},
	}

	// Another process already hosts db.
	client := redisadapter.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	dir := redisadapter.NewDirectory(client, redisadapter.WithPrefix(cfg.Redis.Prefix))
	require.NoError(t, dir.Register(ctx, domain.ServiceRecord{Name: "db", NodeID: "node-9"}))

	_, err := buildMesh(ctx, cfg, logging.NewNop(), false)
	require.ErrorIs(t, err, domain.ErrDuplicateService)

	records, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "products of node-2 must not outlive the failed build")
	assert.Equal(t, "db", records[0].Name)
	assert.Equal(t, "node-9", records[0].NodeID)
}

func TestClientConfig(t *testing.T) {
	cfg := config.Default()

	local, id := clientConfig(cfg)
	assert.Contains(t, id, "cli-")
	require.Len(t, local.Nodes, 4)
	assert.Equal(t, id, local.Nodes[3].ID)
	assert.Empty(t, local.Nodes[0].Services, "gateway is not served by client processes")

	cfg.Transport = config.KindRedis
	remote, id := clientConfig(cfg)
	require.Len(t, remote.Nodes, 1)
	assert.Equal(t, id, remote.Nodes[0].ID)
	assert.Empty(t, remote.Nodes[0].Services)
}

func TestCall_Memory(t *testing.T) {
	var out bytes.Buffer
	err := Call(context.Background(), CallOptions{
		Options: Options{ConfigPath: writeConfig(t, testConfig), Out: &out},
		Target:  "products.createProduct",
		Params:  `{"name":"hat","price":10.99,"quantity":164}`,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Product created!")
	assert.Contains(t, out.String(), `"name": "hat"`)
}

func TestCall_Errors(t *testing.T) {
	path := writeConfig(t, testConfig)
	ctx := context.Background()

	err := Call(ctx, CallOptions{Options: Options{ConfigPath: path}, Target: "products"})
	assert.Error(t, err, "target without action")

	err = Call(ctx, CallOptions{Options: Options{ConfigPath: path}, Target: "products.createProduct", Params: "{"})
	assert.ErrorContains(t, err, "--params")

	var out bytes.Buffer
	err = Call(ctx, CallOptions{
		Options: Options{ConfigPath: path, Out: &out},
		Target:  "products.findProduct",
		Params:  `{"id":"42"}`,
	})
	assert.ErrorContains(t, err, "not_found")
	assert.Empty(t, out.String())
}

func TestRoutes_Plain(t *testing.T) {
	var out bytes.Buffer
	err := Routes(RoutesOptions{Options: Options{ConfigPath: writeConfig(t, testConfig), Out: &out}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "/api/products")
	assert.Contains(t, out.String(), "products.listProducts")
}

func TestGraph_Memory(t *testing.T) {
	var out bytes.Buffer
	err := Graph(context.Background(), Options{ConfigPath: writeConfig(t, testConfig), Out: &out})
	require.NoError(t, err)

	graph := out.String()
	assert.Contains(t, graph, "graph TD")
	assert.Contains(t, graph, `subgraph node_edge["edge"]`)
	assert.Contains(t, graph, `subgraph node_data["data"]`)
	assert.Contains(t, graph, "classDef ready")
}

func TestServe_RequiresRedisForNodeSelection(t *testing.T) {
	err := Serve(context.Background(), ServeOptions{
		Options: Options{ConfigPath: writeConfig(t, testConfig)},
		Nodes:   []string{"edge"},
		Quiet:   true,
	})
	assert.ErrorContains(t, err, "redis transport")
}

func TestServe_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := Serve(ctx, ServeOptions{
		Options: Options{ConfigPath: writeConfig(t, testConfig), Out: &out},
		Quiet:   true,
	})
	assert.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestServeMCP_UnknownTransport(t *testing.T) {
	err := ServeMCP(context.Background(), MCPOptions{
		Options:   Options{ConfigPath: writeConfig(t, testConfig)},
		Transport: "carrier-pigeon",
	})
	assert.ErrorContains(t, err, "unknown transport")
}
