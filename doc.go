/*
Package meshwork is a minimal distributed request-routing mesh: independent
nodes, each hosting named services, cooperate over an asynchronous transport
to fulfill actions that may hop across several nodes.

It follows a hexagonal layout. The core (node registry, dependency gate and
action router, under pkg/) only talks to a Transport and a Directory port;
in-process adapters live in pkg/adapters/memory and Redis adapters in
pkg/adapters/redis, so the same services run in one process or many.

# Concept

A Service declares a name, an ordered list of actions and the services it
depends on. A node registers its services in the mesh-wide directory, then
gates each of them until every dependency is ready somewhere in the mesh.
Calls go through the hosting node's router: local actions are invoked
directly, remote ones travel as request and response messages correlated by
ID, and nested calls keep the request ID and remaining deadline of the call
that issued them.

# Usage

	m := meshwork.New(meshwork.WithLogger(logger))

	m.AddNode(ctx, "node-2", db.New(memory.NewStore()))
	m.AddNode(ctx, "node-3", products.New())

	if err := m.Start(ctx); err != nil {
		log.Fatal(err) // failed services, with their causes
	}
	defer m.Stop(context.Background())

	result, err := m.Call(ctx, "products", "seedProducts", nil)

The cmd/meshwork binary wires the same pieces from a YAML topology and adds
the HTTP gateway, Prometheus metrics and an MCP server.
*/
package meshwork
