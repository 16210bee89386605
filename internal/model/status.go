package model

// Status is an order's position in its lifecycle. Status only moves forward
// through the pickup flow; cancelled and voided are terminal exits.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusReady     Status = "ready_for_pickup"
	StatusClaimed   Status = "claimed"
	StatusCancelled Status = "cancelled"
	StatusVoided    Status = "voided"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusConfirmed, StatusReady, StatusClaimed,
		StatusCancelled, StatusVoided:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusClaimed || s == StatusCancelled || s == StatusVoided
}

// rank orders the forward pickup flow. Terminal exits have no rank.
func (s Status) rank() int {
	switch s {
	case StatusSubmitted:
		return 0
	case StatusConfirmed:
		return 1
	case StatusReady:
		return 2
	case StatusClaimed:
		return 3
	}
	return -1
}

// CanTransition reports whether an order may move from one status to another.
// The pickup flow is forward-only (skipping steps is allowed, since push
// delivery can drop intermediate updates). cancelled is reachable from any
// non-terminal state; voided only from submitted.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusVoided:
		return from == StatusSubmitted
	}
	fr, tr := from.rank(), to.rank()
	if fr < 0 || tr < 0 {
		return false
	}
	return tr > fr
}
