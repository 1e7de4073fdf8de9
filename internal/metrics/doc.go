// Package metrics provides observability hooks for pipeline run metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never requires nil checks at call
// sites. When Prometheus is configured the daemon swaps in a
// PrometheusRecorder backed by its registry and exposes the registry on
// /metrics via HTTPHandler.
package metrics
