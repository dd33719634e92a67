// Package cli implements the interactive walletsync client: a REPL over the
// local offline-first store, with explicit sync, recurring-transaction
// generation, tombstone management and receipt upload commands.
package cli
