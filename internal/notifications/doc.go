// Package notifications delivers queue and connectivity events via
// pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured
// in config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-event config gates and a dedup window keep flapping links
// and repeated drops from storming the subscriber's phone.
//
// Extend this package if you need alternative transports; the daemon and
// the delivery engine depend only on the Service interface.
package notifications
