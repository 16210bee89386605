// Package orders implements the order state store and its reconciliation
// scheduler.
//
// The store holds the authoritative local order list. Push events and REST
// responses are both proposals: they pass through identity matching and the
// merge rules before acceptance, and every push-driven update additionally
// schedules a debounced full refetch from the REST source of truth to correct
// events that arrived incomplete or out of order. A full refetch replaces the
// list atomically.
//
// Newly created orders start a bounded confirmation countdown that auto-voids
// the order unless confirmed in time.
package orders
