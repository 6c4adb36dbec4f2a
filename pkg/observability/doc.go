/*
Package observability turns mesh lifecycle hooks into Prometheus metrics.

Metrics.Hooks returns a domain.LifecycleHooks value that can be chained with
logging hooks and passed to a node; Metrics.Handler serves the collected
series in the Prometheus text format, and the gateway mounts it at /metrics.
*/
package observability
