// Package cache provides TTL-bounded payload caching on top of the queue
// store. Callers stash fetched responses under a (type, key) pair so they
// remain readable while the network is down; expired entries vanish lazily
// on Fetch and in bulk via the background sweeper. The configured quota is
// advisory: crossing it logs a warning but never evicts.
package cache
