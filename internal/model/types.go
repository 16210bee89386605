package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ID is a server-assigned identifier. Upstream services encode ids
// inconsistently (sometimes JSON strings, sometimes numbers), so ID accepts
// both and normalizes to a string.
type ID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Identity is the canonical representation of the current user. InternalID is
// the portal's own record id, ExternalID the auth provider's subject id, and
// Email a documented last-resort matching key.
type Identity struct {
	InternalID ID     `json:"internal_id"`
	ExternalID ID     `json:"external_id"`
	Email      string `json:"email"`
}

// IsZero reports whether no identifier is present.
func (i Identity) IsZero() bool {
	return i.InternalID == "" && i.ExternalID == "" && i.Email == ""
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// OrderItem is a single line item on an order.
type OrderItem struct {
	ItemID   ID     `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderTotals summarizes an order.
type OrderTotals struct {
	ItemCount int     `json:"item_count"`
	Subtotal  float64 `json:"subtotal"`
	Total     float64 `json:"total"`
}

// Order mirrors a server-owned order record.
type Order struct {
	ID            ID          `json:"id"`           // Server-assigned primary key
	OrderNumber   string      `json:"order_number"` // Business key, stable
	Status        Status      `json:"status"`
	StudentID     ID          `json:"student_id"`      // Portal record id
	StudentAuthID ID          `json:"student_auth_id"` // External auth subject id
	StudentEmail  string      `json:"student_email"`
	Items         []OrderItem `json:"items"`
	Totals        OrderTotals `json:"totals"`

	CreatedAt  time.Time `json:"created_at"`
	ExpectedAt time.Time `json:"expected_at"`
	PaidAt     time.Time `json:"paid_at"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

// StudentIdentity collects the order's owner fields into an Identity.
func (o Order) StudentIdentity() Identity {
	return Identity{
		InternalID: o.StudentID,
		ExternalID: o.StudentAuthID,
		Email:      o.StudentEmail,
	}
}

// -----------------------------------------------------------------------------
// Activities
// -----------------------------------------------------------------------------

// ActivityType classifies a user-visible audit trail entry.
type ActivityType string

const (
	ActivityCartAdd       ActivityType = "cart_add"
	ActivityCartRemove    ActivityType = "cart_remove"
	ActivityCheckout      ActivityType = "checkout"
	ActivityOrderPlaced   ActivityType = "order_placed"
	ActivityClaimed       ActivityType = "claimed"
	ActivityOrderReleased ActivityType = "order_released"
)

// ClaimKind reports whether the type participates in the one-per-order
// claim dedup rule.
func (t ActivityType) ClaimKind() bool {
	return t == ActivityClaimed || t == ActivityOrderReleased
}

// Activity is a client-generated audit trail entry.
type Activity struct {
	ID          string       `json:"id"` // Client-generated (time+random)
	Identity    Identity     `json:"identity"`
	Type        ActivityType `json:"type"`
	Timestamp   time.Time    `json:"timestamp"`
	OrderNumber string       `json:"order_number,omitempty"`
	OrderID     ID           `json:"order_id,omitempty"`
	Items       []OrderItem  `json:"items,omitempty"`
	Description string       `json:"description"`
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// Notification is a server-pushed alert (e.g. restock).
type Notification struct {
	ID        ID        `json:"id"`
	Identity  Identity  `json:"identity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
