// Package cli provides the interactive ordersync operator console.
//
// It wires configuration, the local store, the REST client, the
// connectivity monitor and the sync engine, then runs a REPL that works the
// same online and offline: every write lands in the local store first and
// the engine pushes it when the remote is reachable.
//
// Key features:
//   - Add and list clients, service orders, vehicles, line items, expenses
//   - Search and delete local records
//   - Sync now, show sync status, list and reset exhausted entries
//   - Set the API session token (read without echo)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// App.RunCommand runs a single command headless for scripts and cron.
package cli
