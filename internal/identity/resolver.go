// Package identity normalizes the portal's two identifier forms (internal
// record id and external-auth subject id, plus email as a last-resort key)
// into a canonical identity and match predicates usable against event
// payloads. All comparisons in the client go through this package.
package identity

import (
	"strings"

	"github.com/campuspantry/portal-sync/internal/model"
)

// Resolve builds a canonical identity from raw user fields. Ids and email are
// trimmed; email is lowercased since email matching is case-insensitive.
func Resolve(internalID, externalID model.ID, email string) model.Identity {
	return model.Identity{
		InternalID: model.ID(strings.TrimSpace(internalID.String())),
		ExternalID: model.ID(strings.TrimSpace(externalID.String())),
		Email:      strings.ToLower(strings.TrimSpace(email)),
	}
}

// Matches reports whether a candidate identifier from an event payload refers
// to the identity. The candidate is checked against the internal id, the
// external id (exact, case-sensitive), and the email (case-insensitive),
// returning true on first match. Empty values never match.
func Matches(ident model.Identity, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if ident.InternalID != "" && candidate == ident.InternalID.String() {
		return true
	}
	if ident.ExternalID != "" && candidate == ident.ExternalID.String() {
		return true
	}
	if ident.Email != "" && strings.EqualFold(candidate, ident.Email) {
		return true
	}
	return false
}

// MatchesID is Matches for ID-typed candidates.
func MatchesID(ident model.Identity, candidate model.ID) bool {
	return Matches(ident, candidate.String())
}

// Equivalent reports whether two identities refer to the same logical user.
// The two id forms evolved independently, so each id of a is also checked
// against both id fields of b. Email equality is the documented fallback.
func Equivalent(a, b model.Identity) bool {
	if MatchesID(a, b.InternalID) || MatchesID(a, b.ExternalID) {
		return true
	}
	if b.Email != "" && Matches(a, b.Email) {
		return true
	}
	return false
}

// Key returns the persistence key component for an identity: the internal id,
// falling back to the external id, then the lowercased email.
func Key(ident model.Identity) string {
	if ident.InternalID != "" {
		return ident.InternalID.String()
	}
	if ident.ExternalID != "" {
		return ident.ExternalID.String()
	}
	return strings.ToLower(strings.TrimSpace(ident.Email))
}
