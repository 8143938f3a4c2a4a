/*
Package monitoring exports Prometheus metrics for the HTTP surface and for
execution contexts.

Metrics implements bridge.Recorder, so every context created with
bridge.WithRecorder(metrics) reports its lifecycle and each operation (get,
set, eval, dispatch, ...) with its duration and error class. Recording is
independent of a context's gather_stats flag.

Collectors are registered on the Registerer given to NewMetrics, which keeps
tests isolated from the global registry.
*/
package monitoring
