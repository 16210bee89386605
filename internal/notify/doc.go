// Package notify keeps the user's notification list: server-pushed restock
// alerts merged with the REST backlog, with optimistic read/delete updates
// that are reported back to the server best-effort.
package notify
