// Package reconcile keeps the local catalog's view of remote stores
// current, one pull at a time.
//
// A pull fetches one page of remote products and reconciles each against
// the store's sync mappings, joined on canonical URL. Unknown products
// get a new mapping and a new_product queue item; known products get one
// pending queue item per changed field in the fixed comparison set (name,
// price, stock, sku, status). The mapping snapshot is always refreshed
// with non-blank values so later diffs compare against the latest truth.
//
// Critical Patterns:
//
//  1. Pending-item dedup: at most one pending queue item per
//     (mapping, field). The guard is a check-then-insert executed inside
//     the same transaction that refreshes the mapping snapshot; a partial
//     unique index backstops it.
//
//  2. No silent partial success: a fetch failure writes an error-status
//     sync log entry and aborts the pull. Per-product reconciliation runs
//     in its own transaction, so a storage failure mid-page leaves every
//     earlier product fully reconciled and the failing one untouched.
//
//  3. Terminal resolutions: approve and reject move a queue item out of
//     pending exactly once. Resolving a non-pending item is a conflict,
//     not an overwrite. Approval stops at authorization: nothing writes
//     back to the catalog.
package reconcile
