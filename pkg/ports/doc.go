/*
Package ports defines the driven ports (interfaces) of the meshwork runtime.

These interfaces decouple nodes from the infrastructure that carries their
messages and state, so the same node code runs over an in-process bus in tests
and over Redis across processes.

# Key Interfaces

  - Transport: delivers addressed Messages between nodes.
  - Directory: the mesh-wide table of services, their dependencies and readiness.
  - Service: a named set of actions hosted by a node.
  - Caller: the action-call entry point used by adapters such as the gateway.
  - ProductStore: the storage adapter behind the "db" service.
*/
package ports
