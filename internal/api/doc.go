// Package api provides the REST client for the portal backend, the source of
// truth the reconciliation scheduler refetches from.
//
// Endpoints:
//   - GET   /orders?student_id=&student_email=&status=&page=&limit=
//   - POST  /orders
//   - PATCH /orders/:id/status
//   - PATCH /orders/:id/confirm
//   - GET   /notifications?student_id=&student_email=
//   - PATCH /notifications/:id
//   - DELETE /notifications/:id
//
// Order fetches are scoped by the canonical identity's internal id AND email
// simultaneously; the server OR-matches the two, covering legacy records
// created under a different id representation.
package api
