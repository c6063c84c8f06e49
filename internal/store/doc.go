// Package store provides SQLite-backed durable storage for the catalog
// harmonization and store-sync engine.
//
// One database holds every table:
//   - products: the imported catalog, one row per product record
//   - normalization_rules: (field, original) -> normalized mappings
//   - harmonization_logs + harmonization_changes: the append-only audit
//     trail; change rows are the sole source of truth for undo/redo
//   - store_connections, sync_mappings, sync_queue, sync_logs: remote
//     store reconciliation state, keyed by store_id with ON DELETE CASCADE
//
// # Critical Patterns
//
// Pending-item dedup
//   - Partial UNIQUE index on sync_queue(mapping_id, field) WHERE pending
//   - Repeated pulls against an unresolved discrepancy cannot fan out
//     duplicate proposals; the reconcile engine additionally performs its
//     check-then-insert inside the same transaction
//
// Transactional apply
//   - WithTx wraps every step apply, undo/redo, and per-product
//     reconciliation; row mutations and their audit/queue writes commit
//     together or not at all
//
// Deterministic reads
//   - Queries feeding step execution and clustering use ORDER BY id ASC
//     so repeated runs observe records in identical order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
