// Package pipeline defines the build-matrix domain model: stages, matrix
// entries, and trigger-driven selection.
//
// A Pipeline is constructed once per invocation from static configuration and
// is immutable afterwards. Select produces the ordered subset of entries that
// apply to a trigger, grouped by stage; it is a pure function and never fails
// (an empty plan is a valid result).
//
// Execution semantics (concurrency, phase commands, failure propagation) live
// in internal/runner; this package knows nothing about processes or I/O.
package pipeline
