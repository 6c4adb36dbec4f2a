// Package config loads the mesh topology from YAML or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Backend kinds for the transport, directory and storage.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
)

// Services that a node may host.
const (
	ServiceDB       = "db"
	ServiceProducts = "products"
	ServiceGateway  = "gateway"
)

var knownServices = []string{ServiceDB, ServiceProducts, ServiceGateway}

// Duration is a time.Duration written as "10s" in YAML and JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Redis holds the connection settings shared by every Redis adapter.
type Redis struct {
	Addr   string `yaml:"addr" json:"addr"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Gateway configures the HTTP gateway service.
type Gateway struct {
	Address string `yaml:"address" json:"address"`
	// Base is prepended to every alias path.
	Base string `yaml:"base" json:"base"`
	// Aliases maps "METHOD /path" to "service.action". Empty means the product API.
	Aliases map[string]string `yaml:"aliases" json:"aliases"`
}

// Node lists the services hosted by one node.
type Node struct {
	ID       string   `yaml:"id" json:"id"`
	Services []string `yaml:"services" json:"services"`
}

// Config is the content of mesh.yaml.
type Config struct {
	LogLevel     string   `yaml:"log_level" json:"log_level"`
	Transport    string   `yaml:"transport" json:"transport"`
	Storage      string   `yaml:"storage" json:"storage"`
	Redis        Redis    `yaml:"redis" json:"redis"`
	Gateway      Gateway  `yaml:"gateway" json:"gateway"`
	CallTimeout  Duration `yaml:"call_timeout" json:"call_timeout"`
	StartTimeout Duration `yaml:"start_timeout" json:"start_timeout"`
	Nodes        []Node   `yaml:"nodes" json:"nodes"`
}

// Default returns the three-node product mesh running in memory.
func Default() Config {
	return Config{
		LogLevel:     "info",
		Transport:    KindMemory,
		Storage:      KindMemory,
		Redis:        Redis{Addr: "localhost:6379", Prefix: "meshwork:"},
		Gateway:      Gateway{Address: ":3000", Base: "/api"},
		CallTimeout:  Duration(10 * time.Second),
		StartTimeout: Duration(30 * time.Second),
		Nodes: []Node{
			{ID: "node-1", Services: []string{ServiceGateway}},
			{ID: "node-2", Services: []string{ServiceDB}},
			{ID: "node-3", Services: []string{ServiceProducts}},
		},
	}
}

// Load reads a configuration file (YAML or JSON by extension) over the
// defaults. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read mesh config: %w", err)
	}

	// Nodes are replaced, not merged with the default topology.
	cfg.Nodes = nil
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	if len(cfg.Nodes) == 0 {
		cfg.Nodes = Default().Nodes
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend kinds, timeouts, aliases and the topology.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for field, kind := range map[string]string{"transport": c.Transport, "storage": c.Storage} {
		if kind != KindMemory && kind != KindRedis {
			errs = append(errs, fmt.Errorf("%s: unknown kind %q", field, kind))
		}
	}
	if (c.Transport == KindRedis || c.Storage == KindRedis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis: addr is required"))
	}
	if c.CallTimeout < 0 || c.StartTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if _, err := c.Routes(); err != nil {
		errs = append(errs, err)
	}

	nodes := map[string]bool{}
	hosts := map[string]string{}
	for _, n := range c.Nodes {
		if n.ID == "" {
			errs = append(errs, errors.New("node: id is required"))
			continue
		}
		if nodes[n.ID] {
			errs = append(errs, fmt.Errorf("node %s: declared twice", n.ID))
		}
		nodes[n.ID] = true
		for _, svc := range n.Services {
			if !slices.Contains(knownServices, svc) {
				errs = append(errs, fmt.Errorf("node %s: unknown service %q", n.ID, svc))
				continue
			}
			if other, ok := hosts[svc]; ok {
				errs = append(errs, fmt.Errorf("node %s: %w: %s already hosted by %s", n.ID, domain.ErrDuplicateService, svc, other))
				continue
			}
			hosts[svc] = n.ID
		}
	}
	return errors.Join(errs...)
}

// Routes returns the gateway route table, sorted.
func (c Config) Routes() ([]domain.Route, error) {
	if len(c.Gateway.Aliases) == 0 {
		return domain.DefaultRoutes(), nil
	}
	routes := make([]domain.Route, 0, len(c.Gateway.Aliases))
	for alias, target := range c.Gateway.Aliases {
		route, err := domain.ParseAlias(c.Gateway.Base, alias, target)
		if err != nil {
			return nil, fmt.Errorf("gateway: %w", err)
		}
		routes = append(routes, route)
	}
	domain.SortRoutes(routes)
	return routes, nil
}

// Select keeps only the named nodes, in config order. No ids keeps every node.
func (c Config) Select(ids ...string) (Config, error) {
	if len(ids) == 0 {
		return c, nil
	}
	var kept []Node
	for _, n := range c.Nodes {
		if slices.Contains(ids, n.ID) {
			kept = append(kept, n)
		}
	}
	if len(kept) != len(ids) {
		var missing []string
		for _, id := range ids {
			if !slices.ContainsFunc(kept, func(n Node) bool { return n.ID == id }) {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return Config{}, fmt.Errorf("unknown nodes: %s", strings.Join(missing, ", "))
	}
	c.Nodes = kept
	return c, nil
}

// Distributed reports whether nodes in separate processes can see each other.
func (c Config) Distributed() bool {
	return c.Transport == KindRedis
}
