// Package push implements the shared push-event connection.
//
// One WebSocket connection serves the whole client. The Manager owns its
// lifecycle: it connects when a canonical identity becomes available,
// disconnects on logout, and retries transport-level drops up to a fixed
// budget before surfacing a persistent error status.
//
// Consumers attach named-event handlers through On/Off. The handler table
// lives on the Manager, not the connection, so registrations made before the
// connection exists (or across a disconnect/reconnect cycle) hold without the
// consumer doing anything. Handlers for one event fire in registration order,
// on a single dispatch goroutine, so state mutations inside a handler are
// atomic with respect to other handlers.
package push
