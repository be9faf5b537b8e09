// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - Dispatcher with stale-result discard, impostor datasets, WebP snapshots
// 0.2.0 - Adaptive quality controller, LOD table, persisted tier
// 0.1.0 - Initial release: procedural star field, galaxy view, headless summary
