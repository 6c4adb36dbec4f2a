/*
Package domain contains the core models of the meshwork service mesh.

It defines the values that cross component and node boundaries: wire Messages,
per-invocation Call Contexts, service records and readiness states, the
Product entity handled by the storage service, and the error taxonomy shared by
every node. The package is free of I/O so that adapters (memory, Redis, HTTP)
and the node runtime can all depend on it.

# Key Entities

  - Message: the envelope exchanged between nodes (request, response or error).
  - CallContext: the record handed to an action handler for one invocation.
  - ServiceRecord: the mesh-wide directory entry of a service and its readiness.
  - Route: one gateway alias mapping an HTTP method and path to a service action.
  - Product: the entity persisted by the "db" service.
*/
package domain
