package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/campuspantry/portal-sync/internal/metrics"
	"github.com/campuspantry/portal-sync/internal/model"
)

// Handler consumes the data payload of a named event.
type Handler func(data json.RawMessage)

// Subscription identifies a registered handler for Off.
type Subscription struct {
	event string
	id    int64
}

type handlerEntry struct {
	id int64
	fn Handler
}

// Manager owns the single shared push connection and the handler table.
type Manager struct {
	cfg     ManagerConfig
	logger  *slog.Logger
	metrics *metrics.Registry

	// dial creates the underlying client. Overridable in tests.
	dial func(ClientConfig, *slog.Logger) Client

	mu     sync.Mutex
	status Status
	ident  model.Identity
	client Client
	ctx    context.Context
	cancel context.CancelFunc
	gen    int64 // bumped on Connect/Disconnect so stale loops exit

	handlersMu sync.RWMutex
	handlers   map[string][]handlerEntry
	nextSubID  int64
}

// NewManager creates a connection Manager. mreg may be nil.
func NewManager(cfg ManagerConfig, logger *slog.Logger, mreg *metrics.Registry) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:      cfg,
		logger:   logger,
		metrics:  mreg,
		dial:     NewClient,
		status:   StatusDisconnected,
		handlers: make(map[string][]handlerEntry),
	}
}

// Connect establishes the shared connection for the given identity. It is a
// no-op when already connected or connecting. On handshake failure it enters
// the same bounded retry loop used for transport drops.
func (m *Manager) Connect(ctx context.Context, ident model.Identity) error {
	m.mu.Lock()
	if m.status == StatusConnected || m.status == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	gen := m.gen
	m.ident = ident
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.setStatusLocked(StatusConnecting)
	runCtx := m.ctx
	m.mu.Unlock()

	client := m.dial(m.cfg.clientConfig(), m.logger)
	if err := client.Connect(runCtx); err != nil {
		m.logger.Warn("push connect failed, retrying", "error", err)
		go m.reconnect(gen)
		return err
	}

	m.adopt(gen, client)
	return nil
}

// Disconnect tears the connection down and clears the identity. The handler
// table is retained so consumers keep their registrations for the next login.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.cancel != nil {
		m.cancel()
	}
	client := m.client
	m.client = nil
	m.ident = model.Identity{}
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

// Status returns the pollable connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsConnected reports whether the connection is up.
func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// On registers a handler for a named event. Multiple handlers may be
// registered per event; they fire in registration order. Registering while
// disconnected is safe and never panics: the handler simply starts receiving
// once a connection exists.
func (m *Manager) On(event string, h Handler) Subscription {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	m.nextSubID++
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: m.nextSubID, fn: h})

	if !m.IsConnected() {
		m.logger.Debug("handler registered before connection", "event", event)
	}

	return Subscription{event: event, id: m.nextSubID}
}

// Off removes the specific handler identified by sub.
func (m *Manager) Off(event string, sub Subscription) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	entries := m.handlers[event]
	for i, e := range entries {
		if e.id == sub.id {
			m.handlers[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// OffAll removes every handler for the event.
func (m *Manager) OffAll(event string) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	delete(m.handlers, event)
}

// Emit sends a named event to the server.
func (m *Manager) Emit(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	return client.Send(Frame{Event: event, Data: data})
}

// adopt installs a freshly connected client and starts its run loop.
func (m *Manager) adopt(gen int64, client Client) {
	m.mu.Lock()
	if m.gen != gen {
		// Disconnect raced the dial; discard.
		m.mu.Unlock()
		client.Close()
		return
	}
	m.client = client
	m.setStatusLocked(StatusConnected)
	ident := m.ident
	ctx := m.ctx
	m.mu.Unlock()

	if err := m.Emit(eventIdentify, ident); err != nil {
		m.logger.Warn("failed to send identify frame", "error", err)
	}

	go m.runLoop(ctx, gen, client)
}

// runLoop dispatches inbound frames until the connection errors or the
// manager shuts down. All handlers run on this goroutine.
func (m *Manager) runLoop(ctx context.Context, gen int64, client Client) {
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("push connection error", "error", err)
			m.mu.Lock()
			if m.gen != gen {
				m.mu.Unlock()
				return
			}
			m.setStatusLocked(StatusConnecting)
			m.mu.Unlock()

			client.Close()
			m.reconnect(gen)
			return

		case f, ok := <-client.Frames():
			if !ok {
				return
			}
			m.dispatch(f)
		}
	}
}

// dispatch fans a frame out to its handlers in registration order.
func (m *Manager) dispatch(f TimestampedFrame) {
	m.metrics.IncEventReceived(f.Event)

	m.handlersMu.RLock()
	entries := append([]handlerEntry(nil), m.handlers[f.Event]...)
	m.handlersMu.RUnlock()

	if len(entries) == 0 {
		m.metrics.IncEventDropped(f.Event)
		m.logger.Debug("no handlers for event", "event", f.Event)
		return
	}

	for _, e := range entries {
		e.fn(f.Data)
	}
}

// reconnect retries the connection up to the fixed budget with fixed spacing,
// then surfaces a persistent error status.
func (m *Manager) reconnect(gen int64) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		return
	}

	for attempt := 1; attempt <= m.cfg.RetryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RetryWait):
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		m.logger.Info("attempting push reconnection",
			"attempt", attempt,
			"max", m.cfg.RetryAttempts,
		)

		client := m.dial(m.cfg.clientConfig(), m.logger)
		if err := client.Connect(ctx); err != nil {
			m.logger.Warn("push reconnection failed",
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		m.logger.Info("push reconnected", "attempt", attempt)
		m.adopt(gen, client)
		return
	}

	m.mu.Lock()
	if m.gen == gen {
		m.setStatusLocked(StatusError)
	}
	m.mu.Unlock()

	m.logger.Error("push reconnection budget exhausted",
		"attempts", m.cfg.RetryAttempts,
	)
}

// setStatusLocked updates status and the state gauge. Caller holds m.mu.
func (m *Manager) setStatusLocked(s Status) {
	m.status = s
	switch s {
	case StatusDisconnected:
		m.metrics.SetConnectionState(0)
	case StatusConnecting:
		m.metrics.SetConnectionState(1)
	case StatusConnected:
		m.metrics.SetConnectionState(2)
	case StatusError:
		m.metrics.SetConnectionState(-1)
	}
}
