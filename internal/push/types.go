package push

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Event names delivered by the push channel.
const (
	EventOrderUpdated = "order:updated"
	EventOrderClaimed = "order:claimed"
	EventRestocked    = "inventory:restocked"

	// eventIdentify is sent by the client after connecting so the server
	// scopes delivery to the current user.
	eventIdentify = "identify"
)

// Frame is one named event on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TimestampedFrame wraps a frame with its local receive time.
type TimestampedFrame struct {
	Frame
	ReceivedAt time.Time
}

// Status is the connection state surfaced to consumers. error is a
// side-channel status entered when the reconnection budget is exhausted.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL
	Token        string        // Bearer token (empty = no auth header)
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	URL           string        // WebSocket URL
	Token         string        // Bearer token
	RetryAttempts int           // Reconnection budget after a transport drop
	RetryWait     time.Duration // Fixed spacing between attempts
	PingTimeout   time.Duration
	WriteTimeout  time.Duration
	BufferSize    int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		RetryAttempts: 5,
		RetryWait:     time.Second,
		PingTimeout:   60 * time.Second,
		WriteTimeout:  5 * time.Second,
		BufferSize:    256,
	}
}

func (c ManagerConfig) clientConfig() ClientConfig {
	return ClientConfig{
		URL:          c.URL,
		Token:        c.Token,
		PingTimeout:  c.PingTimeout,
		WriteTimeout: c.WriteTimeout,
		BufferSize:   c.BufferSize,
	}
}
