package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Nodes, 3)
	assert.Equal(t, Node{ID: "node-1", Services: []string{ServiceGateway}}, cfg.Nodes[0])
	assert.Equal(t, Node{ID: "node-2", Services: []string{ServiceDB}}, cfg.Nodes[1])
	assert.Equal(t, Node{ID: "node-3", Services: []string{ServiceProducts}}, cfg.Nodes[2])
	assert.False(t, cfg.Distributed())

	routes, err := cfg.Routes()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRoutes(), routes)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "mesh.yaml", `
log_level: debug
transport: redis
storage: redis
redis:
  addr: redis:6379
  prefix: "shop:"
call_timeout: 2s
gateway:
  address: ":8080"
  base: /v1
  aliases:
    "GET /items": products.listProducts
    "GET /items/:id": products.findProduct
nodes:
  - id: edge
    services: [gateway]
  - id: core
    services: [db, products]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Distributed())
	assert.Equal(t, Redis{Addr: "redis:6379", Prefix: "shop:"}, cfg.Redis)
	assert.Equal(t, Duration(2*time.Second), cfg.CallTimeout)
	assert.Equal(t, Duration(30*time.Second), cfg.StartTimeout, "unset fields keep their default")
	assert.Equal(t, []Node{
		{ID: "edge", Services: []string{"gateway"}},
		{ID: "core", Services: []string{"db", "products"}},
	}, cfg.Nodes)

	routes, err := cfg.Routes()
	require.NoError(t, err)
	assert.Equal(t, []domain.Route{
		{Method: "GET", Path: "/v1/items", Service: "products", Action: "listProducts"},
		{Method: "GET", Path: "/v1/items/:id", Service: "products", Action: "findProduct"},
	}, routes)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "mesh.json", `{
		"call_timeout": "500ms",
		"nodes": [{"id": "solo", "services": ["db", "products", "gateway"]}]
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.CallTimeout)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, KindMemory, cfg.Transport)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read mesh config")

	_, err = Load(writeFile(t, "bad.yaml", "nodes: [\n"))
	assert.ErrorContains(t, err, "failed to parse bad.yaml")

	_, err = Load(writeFile(t, "bad.yaml", "call_timeout: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Transport = "nats"
	cfg.LogLevel = "chatty"
	cfg.Nodes = append(cfg.Nodes,
		Node{ID: "node-1"},
		Node{ID: "node-4", Services: []string{"db", "billing"}},
		Node{},
	)
	cfg.Gateway.Aliases = map[string]string{"FETCH /x": "a.b"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `transport: unknown kind "nats"`)
	assert.ErrorContains(t, err, "invalid log level")
	assert.ErrorContains(t, err, "node node-1: declared twice")
	assert.ErrorContains(t, err, `unknown service "billing"`)
	assert.ErrorContains(t, err, "node: id is required")
	assert.ErrorContains(t, err, "unsupported method FETCH")
	assert.ErrorIs(t, err, domain.ErrDuplicateService, "db hosted twice")

	cfg = Default()
	cfg.Storage = KindRedis
	cfg.Redis.Addr = ""
	assert.ErrorContains(t, cfg.Validate(), "redis: addr is required")
}

func TestSelect(t *testing.T) {
	cfg, err := Default().Select("node-3", "node-2")
	require.NoError(t, err)
	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, "node-2", cfg.Nodes[0].ID, "config order is kept")

	all, err := Default().Select()
	require.NoError(t, err)
	assert.Len(t, all.Nodes, 3)

	_, err = Default().Select("node-2", "node-9")
	assert.ErrorContains(t, err, "unknown nodes: node-9")
}
