// Package workspace manages the directories pipeline runs execute in,
// supporting both ephemeral (timestamped) and persistent (fixed-path) modes.
//
// Ephemeral mode creates timestamped directories (e.g., matrixci-20260824-122336)
// suitable for one-shot runs, cleaning up completely after use.
//
// Persistent mode uses a fixed directory path (e.g., matrixci-data/working)
// that survives across runs, used by the daemon for clone caching and
// per-run log output.
package workspace
