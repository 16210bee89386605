// Package model defines shared data types used across the portal sync client.
//
// Conventions:
//   - Server ids: the ID scalar, which tolerates JSON string or number encoding
//   - Timestamps: time.Time, zero value means "not set"
//   - Order numbers: human-facing stable business keys (e.g. "ORD-100")
package model
