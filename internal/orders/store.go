package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/campuspantry/portal-sync/internal/api"
	"github.com/campuspantry/portal-sync/internal/identity"
	"github.com/campuspantry/portal-sync/internal/metrics"
	"github.com/campuspantry/portal-sync/internal/model"
)

// ErrBlocked is returned by Create while a voided order awaits acknowledgement.
var ErrBlocked = errors.New("orders: voided order must be acknowledged first")

// API is the REST surface the store depends on.
type API interface {
	GetAllOrders(ctx context.Context, opts api.ListOrdersOptions) ([]model.Order, error)
	CreateOrder(ctx context.Context, order api.NewOrder) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id model.ID, status model.Status) (*model.Order, error)
	ConfirmOrder(ctx context.Context, id model.ID) (*model.Order, error)
}

// ClaimSink receives orders that transitioned to claimed, so the activity
// log can record the release.
type ClaimSink interface {
	RecordClaim(order model.Order)
}

// Config holds store configuration.
type Config struct {
	SettleDelay      time.Duration // Wait after a push update before refetching
	DebounceInterval time.Duration // Minimum spacing between refetches
	RetryDelay       time.Duration // Wait before the single refetch retry
	ConfirmWindow    time.Duration // Countdown before an unconfirmed order voids
	PageLimit        int           // Refetch page size

	// AcceptUnmatched keeps the legacy best-effort policy of accepting
	// events whose identity does not match when they carry an order number.
	// Accepted events are logged and counted, never silent.
	AcceptUnmatched bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SettleDelay:      400 * time.Millisecond,
		DebounceInterval: time.Second,
		RetryDelay:       5 * time.Second,
		ConfirmWindow:    10 * time.Second,
		PageLimit:        100,
		AcceptUnmatched:  true,
	}
}

// Store owns the local order list. All reads go through accessors that
// return copies; nothing outside the store mutates the list.
type Store struct {
	cfg     Config
	rest    API
	logger  *slog.Logger
	metrics *metrics.Registry
	claims  ClaimSink

	mu      sync.Mutex
	ident   model.Identity
	orders  []model.Order
	loaded  bool
	lastErr error

	rec   *Reconciler
	timer *ConfirmTimer
}

// NewStore creates an order store. mreg may be nil.
func NewStore(cfg Config, rest API, logger *slog.Logger, mreg *metrics.Registry) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		cfg:     cfg,
		rest:    rest,
		logger:  logger,
		metrics: mreg,
	}
	s.rec = NewReconciler(cfg.SettleDelay, cfg.DebounceInterval, cfg.RetryDelay, s.refetch, logger, mreg)
	s.timer = NewConfirmTimer(cfg.ConfirmWindow, s.voidOrder, logger)
	return s
}

// SetClaimSink wires the activity log. May be nil.
func (s *Store) SetClaimSink(cs ClaimSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims = cs
}

// SetIdentity installs the canonical identity and triggers the initial fetch,
// which bypasses the debounce.
func (s *Store) SetIdentity(ctx context.Context, ident model.Identity) {
	s.mu.Lock()
	s.ident = ident
	s.loaded = false
	s.lastErr = nil
	s.mu.Unlock()

	s.timer.Reset()
	s.rec.FetchNow(ctx)
}

// Clear drops all state on logout.
func (s *Store) Clear() {
	s.rec.Cancel()
	s.timer.Stop()

	s.mu.Lock()
	s.ident = model.Identity{}
	s.orders = nil
	s.loaded = false
	s.lastErr = nil
	s.mu.Unlock()
}

// Orders returns a copy of the current order list.
func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.orders...)
}

// Get returns the order with the given id.
func (s *Store) Get(id model.ID) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.Order{}, false
}

// GetByNumber returns the order with the given business key.
func (s *Store) GetByNumber(orderNumber string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == orderNumber {
			return o, true
		}
	}
	return model.Order{}, false
}

// Loaded reports whether at least one full fetch has completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LastErr returns the surfaced fetch error, nil when healthy.
func (s *Store) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Blocked reports whether a voided order is awaiting acknowledgement.
func (s *Store) Blocked() bool { return s.timer.Blocked() }

// Acknowledge clears the void block.
func (s *Store) Acknowledge() { s.timer.Acknowledge() }

// Stop cancels pending reconcile and confirmation timers.
func (s *Store) Stop() {
	s.rec.Cancel()
	s.timer.Stop()
}

// Apply inserts or updates a single order following the merge rules: match by
// id, fall back to order number; new non-zero values win; missing fields in
// the incoming record do not erase existing ones; status only moves forward.
// Returns the resulting record.
func (s *Store) Apply(incoming model.Order) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(incoming)
}

func (s *Store) applyLocked(incoming model.Order) model.Order {
	idx := -1
	if incoming.ID != "" {
		for i, o := range s.orders {
			if o.ID == incoming.ID {
				idx = i
				break
			}
		}
	}
	if idx < 0 && incoming.OrderNumber != "" {
		// Legacy/partial payloads may carry only the business key.
		for i, o := range s.orders {
			if o.OrderNumber == incoming.OrderNumber {
				idx = i
				break
			}
		}
	}

	if idx < 0 {
		s.orders = append([]model.Order{incoming}, s.orders...)
		return incoming
	}

	merged := mergeOrder(s.orders[idx], incoming)
	if merged.Status != s.orders[idx].Status && !model.CanTransition(s.orders[idx].Status, merged.Status) {
		// Should not happen after mergeOrder, but never let a merge move an
		// order backwards.
		merged.Status = s.orders[idx].Status
	}
	s.orders[idx] = merged
	return merged
}

// mergeOrder merges incoming into existing. New values win; zero values in
// incoming keep the existing field. Status is force-corrected to the existing
// value when the incoming one would move backwards.
func mergeOrder(existing, incoming model.Order) model.Order {
	out := existing

	if incoming.ID != "" {
		out.ID = incoming.ID
	}
	if incoming.OrderNumber != "" {
		out.OrderNumber = incoming.OrderNumber
	}
	if incoming.StudentID != "" {
		out.StudentID = incoming.StudentID
	}
	if incoming.StudentAuthID != "" {
		out.StudentAuthID = incoming.StudentAuthID
	}
	if incoming.StudentEmail != "" {
		out.StudentEmail = incoming.StudentEmail
	}
	if incoming.Items != nil {
		out.Items = incoming.Items
	}
	if incoming.Totals != (model.OrderTotals{}) {
		out.Totals = incoming.Totals
	}
	if !incoming.CreatedAt.IsZero() {
		out.CreatedAt = incoming.CreatedAt
	}
	if !incoming.ExpectedAt.IsZero() {
		out.ExpectedAt = incoming.ExpectedAt
	}
	if !incoming.PaidAt.IsZero() {
		out.PaidAt = incoming.PaidAt
	}
	if !incoming.ClaimedAt.IsZero() {
		out.ClaimedAt = incoming.ClaimedAt
	}

	if incoming.Status.Valid() {
		if existing.Status == "" || model.CanTransition(existing.Status, incoming.Status) {
			out.Status = incoming.Status
		} else {
			out.Status = existing.Status
		}
	}

	return out
}

// Replace swaps in a full refetch result atomically. The snapshot is
// authoritative; no fields from the previous list survive.
func (s *Store) Replace(list []model.Order) {
	s.mu.Lock()
	s.orders = append([]model.Order(nil), list...)
	s.loaded = true
	s.mu.Unlock()
}

// HandlePushUpdate consumes an "order:updated" event payload. Malformed or
// mismatched payloads are dropped with a log line; nothing here throws into
// the dispatch loop.
func (s *Store) HandlePushUpdate(data json.RawMessage) {
	var ev model.OrderUpdatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("unparseable order:updated payload", "error", err)
		return
	}

	var incoming model.Order
	if ev.Order != nil {
		incoming = *ev.Order
	}
	if incoming.ID == "" {
		incoming.ID = ev.OrderID
	}
	// The event's top-level status wins over the nested order's.
	if ev.Status.Valid() {
		incoming.Status = ev.Status
	}
	if incoming.ID == "" && incoming.OrderNumber == "" {
		s.logger.Warn("order:updated without id or order number, dropping")
		return
	}

	s.mu.Lock()
	ident := s.ident
	s.mu.Unlock()
	if ident.IsZero() {
		return
	}

	owner := incoming.StudentIdentity()
	if !owner.IsZero() && !identity.Equivalent(ident, owner) {
		s.metrics.IncIdentityMismatch()
		if !(s.cfg.AcceptUnmatched && incoming.OrderNumber != "") {
			s.logger.Warn("order:updated identity mismatch, dropping",
				"order_id", incoming.ID,
				"order_number", incoming.OrderNumber,
			)
			return
		}
		// Best-effort legacy policy: the order number is trusted even when
		// the ids disagree.
		s.metrics.IncFallbackAccept()
		s.logger.Warn("order:updated identity mismatch, accepting via order number",
			"order_number", incoming.OrderNumber,
		)
	}

	s.mu.Lock()
	prevStatus := model.Status("")
	for _, o := range s.orders {
		if (incoming.ID != "" && o.ID == incoming.ID) ||
			(incoming.OrderNumber != "" && o.OrderNumber == incoming.OrderNumber) {
			prevStatus = o.Status
			break
		}
	}
	applied := s.applyLocked(incoming)
	claims := s.claims
	s.mu.Unlock()

	// The countdown only guards unconfirmed submitted orders; any
	// server-driven move past submitted settles it.
	if applied.ID != "" && applied.Status.Valid() &&
		applied.Status != model.StatusSubmitted && applied.Status != model.StatusVoided {
		s.timer.Confirm(applied.ID)
	}

	if applied.Status == model.StatusClaimed && prevStatus != model.StatusClaimed && claims != nil {
		claims.RecordClaim(applied)
	}

	// The event may have been partial or out of order: let the source of
	// truth settle it.
	s.rec.Schedule()
}

// Create submits a new order and starts its confirmation countdown.
func (s *Store) Create(ctx context.Context, req api.NewOrder) (model.Order, error) {
	if s.timer.Blocked() {
		return model.Order{}, ErrBlocked
	}

	o, err := s.rest.CreateOrder(ctx, req)
	if err != nil {
		return model.Order{}, err
	}

	applied := s.Apply(*o)
	s.timer.Start(applied.ID)
	return applied, nil
}

// Confirm cancels the confirmation countdown and marks the order confirmed
// exactly once. Confirming twice is a no-op; confirming after the order
// voided has no effect.
func (s *Store) Confirm(ctx context.Context, id model.ID) error {
	confirmed, first := s.timer.Confirm(id)
	if !confirmed || !first {
		return nil
	}

	s.Apply(model.Order{ID: id, Status: model.StatusConfirmed})

	if _, err := s.rest.ConfirmOrder(ctx, id); err != nil {
		s.logger.Warn("order confirm call failed", "order_id", id, "error", err)
		return err
	}
	return nil
}

// voidOrder runs on countdown expiry.
func (s *Store) voidOrder(id model.ID) {
	s.Apply(model.Order{ID: id, Status: model.StatusVoided})
	s.logger.Info("order voided, confirmation window expired", "order_id", id)

	// Best-effort server update; the local transition stands either way.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.rest.UpdateOrderStatus(ctx, id, model.StatusVoided); err != nil {
			s.logger.Warn("failed to report voided order", "order_id", id, "error", err)
		}
	}()
}

// refetch pulls the authoritative order list, scoped by both identity
// representations.
func (s *Store) refetch(ctx context.Context) error {
	s.mu.Lock()
	ident := s.ident
	s.mu.Unlock()
	if ident.IsZero() {
		return nil
	}

	list, err := s.rest.GetAllOrders(ctx, api.ListOrdersOptions{
		StudentID:    ident.InternalID,
		StudentEmail: ident.Email,
		Limit:        s.cfg.PageLimit,
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.Replace(list)

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}
