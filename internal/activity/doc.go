// Package activity maintains the client-side audit trail: cart actions,
// checkouts, placed orders, and claim events. Entries are capped, deduplicated
// per order for claim events, and persisted per identity so the trail survives
// restarts.
package activity
