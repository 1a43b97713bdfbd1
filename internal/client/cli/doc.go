// Package cli provides the interactive CallShield command-line client.
//
// It wires configuration, local storage, the sync coordinator, the
// reputation manager and a background connectivity watcher, then runs a
// REPL. Everything works offline; contributions are queued and drained
// once the server becomes reachable.
//
// Commands:
//   - record <number> <action> [args]  record a block, unblock, allow, report or call
//   - lookup <number> [refresh]         score a number and suggest an action
//   - stats                             summarise local records and the sync queue
//   - sync                              drain the sync queue now
//   - reconcile <number>                merge the number with the shared reputation
//   - purge <number> | purge all        forget numbers on this device
//   - status                            connectivity and sync counters
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
