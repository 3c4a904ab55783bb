// Package ledger persists content variants and their processing lifecycle in
// SQLite. Entries are keyed by (content item id, variant type, network tier);
// creation is idempotent and status changes are compare-and-swap so
// concurrent workers never double-process a key.
package ledger
