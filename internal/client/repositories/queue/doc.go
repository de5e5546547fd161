// Package queue provides the durable sync queue: the ledger of local
// mutations the remote has not acknowledged yet.
//
// # Coalescing
//
// There is at most one entry per (entity type, local id). Adding a mutation
// for an entity that already has an entry rewrites that entry in place:
//
//   - CREATE + UPDATE keeps CREATE with the newest payload;
//   - CREATE + DELETE removes the entry (Annihilated is returned), since the
//     remote never saw the entity;
//   - otherwise the operation and payload are replaced.
//
// The priority of a coalesced entry never gets less urgent.
//
// # Retry
//
// Failed attempts increment Attempts. Entries with Attempts >= MaxAttempts
// are terminal: GetPending skips them and only ResetAttempts re-admits them.
// Readiness after a failure is the pure function IsReady (exponential
// backoff from the last attempt).
//
// The repository works over dbx.DBTX so callers can run queue writes inside
// the same transaction as the entity row they belong to.
package queue
