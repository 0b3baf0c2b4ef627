// Package daemon coordinates the long-running courier process and system
// integration points.
//
// It wires configuration, queue storage, the connectivity monitor, the
// delivery manager, and the data cache into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes
// the pass-through operations the IPC layer serves: enqueue and submit,
// queue maintenance, cache access, connectivity status, and diagnostics.
//
// Keep orchestration logic here: delivery and probing live in their own
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
