package model

// Push event payloads. The envelope field names are what the push channel
// sends (camelCase); nested order/notification objects use the REST shapes.

// OrderUpdatedEvent is the payload of an "order:updated" frame. Any field may
// be absent: some producers send only {status, orderId}, others the full
// order. Status at the top level wins over the nested order's status.
type OrderUpdatedEvent struct {
	Status  Status `json:"status,omitempty"`
	Order   *Order `json:"order,omitempty"`
	OrderID ID     `json:"orderId,omitempty"`
}

// OrderClaimedEvent is the payload of an "order:claimed" frame.
type OrderClaimedEvent struct {
	UserID      ID          `json:"userId"`
	OrderID     ID          `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	Items       []OrderItem `json:"items,omitempty"`
	ItemCount   int         `json:"itemCount,omitempty"`
}

// RestockedEvent is the payload of an "inventory:restocked" frame.
type RestockedEvent struct {
	UserID       ID            `json:"userId"`
	Notification *Notification `json:"notification"`
}
