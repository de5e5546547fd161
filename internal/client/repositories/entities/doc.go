// Package entities implements the per-type entity repositories (clients,
// service orders, vehicles, line items and expenses) on top of one generic
// SQLite store.
//
// Every local mutation is written in a single transaction together with its
// sync queue entry and its audit entry, so the row status and the queue never
// disagree. Writes never touch the network; reads go through the cache-first
// policy of the cache package.
//
// The engine-facing half of each repository (PreparePush, AcknowledgePush and
// friends) is the Syncable interface.
package entities
