// Package connectivity watches whether the host can reach the network.
// A sysfs link prober supplies the base signal, kernel netlink events
// trigger immediate re-probes, and an optional HTTP prober verifies real
// reachability when configured. Transitions are debounced so flapping
// links never storm subscribers.
package connectivity
