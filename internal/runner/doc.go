// Package runner executes a selected pipeline plan: entries grouped by
// stage, four ordered phases per entry, intra-stage concurrency with a
// strict barrier between stages, and fast-finish cancellation.
//
// The runner is deliberately dumb about where plans come from (internal/
// pipeline) and where results go (internal/history, internal/notify); it
// reports through a RunReport and injected metrics/observer hooks.
package runner
