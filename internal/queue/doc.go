// Package queue persists outbound HTTP requests and cached payloads in
// SQLite and defines the Backend contract the delivery engine operates
// against.
//
// The Store manages database connections, schema initialization and
// migration, delivery-order queries, attempt bookkeeping, and cache
// expiry sweeps. A successful Add is the durability acknowledgement:
// once it returns, the request survives process crashes and is replayed
// until a delivery outcome removes it. MemoryBackend implements the
// same contract without a database so the daemon can keep accepting
// work when storage is unavailable.
//
// Treat this package as the single source of truth for queue semantics;
// when you add new request or cache fields, add a migration and bump
// schemaVersion.
package queue
