package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuspantry/portal-sync/internal/identity"
	"github.com/campuspantry/portal-sync/internal/metrics"
	"github.com/campuspantry/portal-sync/internal/model"
	"github.com/campuspantry/portal-sync/internal/storage"
)

const keyPrefix = "activities_"

// Config holds activity log configuration.
type Config struct {
	Cap          int // Maximum retained entries
	EmergencyCap int // Retained entries after a quota-exceeded persist

	// AcceptUnmatched mirrors the order store's legacy policy: claim events
	// whose user id does not match are still recorded when they carry an
	// order number.
	AcceptUnmatched bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cap:             50,
		EmergencyCap:    20,
		AcceptUnmatched: true,
	}
}

// Store is the capped, persisted activity log. Entries are newest first.
type Store struct {
	cfg     Config
	kv      storage.Store
	logger  *slog.Logger
	metrics *metrics.Registry

	mu    sync.Mutex
	ident model.Identity
	items []model.Activity
}

// NewStore creates an activity store backed by kv. kv and mreg may be nil;
// without kv the log is memory-only.
func NewStore(cfg Config, kv storage.Store, logger *slog.Logger, mreg *metrics.Registry) *Store {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultConfig().Cap
	}
	if cfg.EmergencyCap <= 0 || cfg.EmergencyCap > cfg.Cap {
		cfg.EmergencyCap = DefaultConfig().EmergencyCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:     cfg,
		kv:      kv,
		logger:  logger,
		metrics: mreg,
	}
}

// SetIdentity installs the identity and loads its persisted trail. Entries
// recorded under an older representation of the same user are kept; entries
// belonging to someone else are dropped.
func (s *Store) SetIdentity(ident model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ident = ident
	s.items = nil
	if ident.IsZero() || s.kv == nil {
		return
	}

	raw, ok, err := s.kv.Get(keyPrefix + identity.Key(ident))
	if err != nil {
		s.logger.Warn("failed to load persisted activities", "error", err)
		return
	}
	if !ok {
		return
	}

	var loaded []model.Activity
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.logger.Warn("corrupt persisted activities, discarding", "error", err)
		return
	}
	for _, a := range loaded {
		if identity.Equivalent(s.ident, a.Identity) {
			s.items = append(s.items, a)
		}
	}
	if len(s.items) > s.cfg.Cap {
		s.items = s.items[:s.cfg.Cap]
	}
}

// Clear drops the in-memory trail and its persisted copy.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv != nil && !s.ident.IsZero() {
		if err := s.kv.Delete(keyPrefix + identity.Key(s.ident)); err != nil {
			s.logger.Warn("failed to delete persisted activities", "error", err)
		}
	}
	s.ident = model.Identity{}
	s.items = nil
}

// Activities returns a copy of the trail, newest first.
func (s *Store) Activities() []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Activity(nil), s.items...)
}

// Record appends an entry. Claim entries (claimed, order_released) are
// deduplicated per order number: a repeat of the same type is dropped, and
// order_released replaces an existing claimed entry for the same order
// regardless of which arrived first.
func (s *Store) Record(a model.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(a)
}

func (s *Store) recordLocked(a model.Activity) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if a.Identity.IsZero() {
		a.Identity = s.ident
	}

	if a.Type.ClaimKind() && a.OrderNumber != "" {
		for i, existing := range s.items {
			if !existing.Type.ClaimKind() || existing.OrderNumber != a.OrderNumber {
				continue
			}
			if existing.Type == model.ActivityOrderReleased || existing.Type == a.Type {
				// Already have the authoritative entry for this order.
				return
			}
			// order_released supersedes a prior claimed entry in place.
			s.items[i] = a
			s.persistLocked()
			return
		}
	}

	s.items = append([]model.Activity{a}, s.items...)
	if len(s.items) > s.cfg.Cap {
		s.items = s.items[:s.cfg.Cap]
	}
	s.persistLocked()
}

// persistLocked writes the trail through to storage. On quota pressure it
// retries once with the emergency cap, then drops the write and counts it.
func (s *Store) persistLocked() {
	if s.kv == nil || s.ident.IsZero() {
		return
	}
	key := keyPrefix + identity.Key(s.ident)

	if err := s.put(key, s.items); err != nil {
		if !errors.Is(err, storage.ErrQuotaExceeded) {
			s.logger.Warn("failed to persist activities", "error", err)
			return
		}
		trimmed := s.items
		if len(trimmed) > s.cfg.EmergencyCap {
			trimmed = trimmed[:s.cfg.EmergencyCap]
		}
		if err := s.put(key, trimmed); err != nil {
			s.metrics.IncActivitySaveDrop()
			s.logger.Warn("activity persist dropped, quota exceeded twice", "entries", len(trimmed))
			return
		}
		s.logger.Warn("activity persist trimmed to emergency cap",
			"cap", s.cfg.EmergencyCap,
			"had", len(s.items),
		)
	}
}

func (s *Store) put(key string, items []model.Activity) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.kv.Put(key, raw)
}

// HandleClaimEvent consumes an "order:claimed" event payload. Events for
// another user are dropped unless the legacy order-number fallback applies.
func (s *Store) HandleClaimEvent(data json.RawMessage) {
	var ev model.OrderClaimedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("unparseable order:claimed payload", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident.IsZero() {
		return
	}
	if ev.UserID != "" && !identity.MatchesID(s.ident, ev.UserID) {
		s.metrics.IncIdentityMismatch()
		if !(s.cfg.AcceptUnmatched && ev.OrderNumber != "") {
			s.logger.Warn("order:claimed identity mismatch, dropping",
				"order_number", ev.OrderNumber,
			)
			return
		}
		s.metrics.IncFallbackAccept()
		s.logger.Warn("order:claimed identity mismatch, accepting via order number",
			"order_number", ev.OrderNumber,
		)
	}

	s.recordLocked(model.Activity{
		Type:        model.ActivityOrderReleased,
		OrderNumber: ev.OrderNumber,
		OrderID:     ev.OrderID,
		Items:       ev.Items,
		Description: fmt.Sprintf("Order %s released for pickup", ev.OrderNumber),
	})
}

// RecordClaim registers a claim observed through an order status change. The
// order store calls this when an order first transitions to claimed.
func (s *Store) RecordClaim(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(model.Activity{
		Type:        model.ActivityOrderReleased,
		OrderNumber: o.OrderNumber,
		OrderID:     o.ID,
		Items:       o.Items,
		Description: fmt.Sprintf("Order %s released for pickup", o.OrderNumber),
	})
}
