// Command courier is the CLI for the courier daemon. It manages the
// daemon process, submits requests for immediate or background
// delivery, and inspects queue, cache, and connectivity state over the
// daemon's control socket, falling back to the store directly when the
// daemon is not running.
package main
