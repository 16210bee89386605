package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campuspantry/portal-sync/internal/identity"
	"github.com/campuspantry/portal-sync/internal/metrics"
	"github.com/campuspantry/portal-sync/internal/model"
	"github.com/campuspantry/portal-sync/internal/storage"
)

const keyPrefix = "notifications_"

// serverTimeout bounds the fire-and-forget server write-backs.
const serverTimeout = 5 * time.Second

// API is the REST surface the store depends on.
type API interface {
	GetNotifications(ctx context.Context, ident model.Identity) ([]model.Notification, error)
	UpdateNotification(ctx context.Context, id model.ID, isRead bool) error
	DeleteNotification(ctx context.Context, id model.ID) error
}

// Config holds notification store configuration.
type Config struct {
	Cap int // Maximum retained notifications
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Cap: 50}
}

// Store is the notification list, newest first. Read and delete updates are
// optimistic: applied locally first, reported to the server best-effort.
type Store struct {
	cfg     Config
	rest    API
	kv      storage.Store
	logger  *slog.Logger
	metrics *metrics.Registry

	mu    sync.Mutex
	ident model.Identity
	items []model.Notification
}

// NewStore creates a notification store. kv, rest and mreg may be nil.
func NewStore(cfg Config, rest API, kv storage.Store, logger *slog.Logger, mreg *metrics.Registry) *Store {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultConfig().Cap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:     cfg,
		rest:    rest,
		kv:      kv,
		logger:  logger,
		metrics: mreg,
	}
}

// SetIdentity installs the identity and loads its persisted notifications.
func (s *Store) SetIdentity(ident model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ident = ident
	s.items = nil
	defer s.gaugeLocked()

	if ident.IsZero() || s.kv == nil {
		return
	}
	raw, ok, err := s.kv.Get(keyPrefix + identity.Key(ident))
	if err != nil {
		s.logger.Warn("failed to load persisted notifications", "error", err)
		return
	}
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, &s.items); err != nil {
		s.logger.Warn("corrupt persisted notifications, discarding", "error", err)
		s.items = nil
	}
}

// Clear drops everything on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv != nil && !s.ident.IsZero() {
		if err := s.kv.Delete(keyPrefix + identity.Key(s.ident)); err != nil {
			s.logger.Warn("failed to delete persisted notifications", "error", err)
		}
	}
	s.ident = model.Identity{}
	s.items = nil
	s.gaugeLocked()
}

// Notifications returns a copy of the list, newest first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.items...)
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

func (s *Store) unreadLocked() int {
	n := 0
	for _, item := range s.items {
		if !item.IsRead {
			n++
		}
	}
	return n
}

// Refresh replaces the list with the server's. The server copy is
// authoritative, including read state.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	ident := s.ident
	s.mu.Unlock()
	if ident.IsZero() || s.rest == nil {
		return nil
	}

	list, err := s.rest.GetNotifications(ctx, ident)
	if err != nil {
		return fmt.Errorf("refreshing notifications: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = list
	if len(s.items) > s.cfg.Cap {
		s.items = s.items[:s.cfg.Cap]
	}
	s.persistLocked()
	s.gaugeLocked()
	return nil
}

// HandleRestockEvent consumes an "inventory:restocked" event payload. Events
// addressed to another user are dropped.
func (s *Store) HandleRestockEvent(data json.RawMessage) {
	var ev model.RestockedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("unparseable inventory:restocked payload", "error", err)
		return
	}
	if ev.Notification == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident.IsZero() {
		return
	}
	if ev.UserID != "" && !identity.MatchesID(s.ident, ev.UserID) {
		s.metrics.IncIdentityMismatch()
		s.logger.Warn("inventory:restocked for another user, dropping",
			"notification_id", ev.Notification.ID,
		)
		return
	}

	n := *ev.Notification
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Identity.IsZero() {
		n.Identity = s.ident
	}

	// Redelivered events must not duplicate.
	for _, existing := range s.items {
		if existing.ID != "" && existing.ID == n.ID {
			return
		}
	}

	s.items = append([]model.Notification{n}, s.items...)
	if len(s.items) > s.cfg.Cap {
		s.items = s.items[:s.cfg.Cap]
	}
	s.persistLocked()
	s.gaugeLocked()
}

// MarkAsRead flags a notification read locally and reports it to the server
// best-effort. Unknown ids are a no-op.
func (s *Store) MarkAsRead(id model.ID) {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].IsRead {
			s.items[i].IsRead = true
			changed = true
			break
		}
	}
	if changed {
		s.persistLocked()
		s.gaugeLocked()
	}
	s.mu.Unlock()
	if !changed {
		return
	}

	s.writeBack(func(ctx context.Context) error {
		return s.rest.UpdateNotification(ctx, id, true)
	})
}

// MarkAllAsRead flags every notification read.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	var ids []model.ID
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			ids = append(ids, s.items[i].ID)
		}
	}
	if len(ids) > 0 {
		s.persistLocked()
		s.gaugeLocked()
	}
	s.mu.Unlock()

	for _, id := range ids {
		id := id
		s.writeBack(func(ctx context.Context) error {
			return s.rest.UpdateNotification(ctx, id, true)
		})
	}
}

// Delete removes a notification locally and server-side best-effort.
func (s *Store) Delete(id model.ID) {
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.persistLocked()
		s.gaugeLocked()
	}
	s.mu.Unlock()
	if !removed {
		return
	}

	s.writeBack(func(ctx context.Context) error {
		return s.rest.DeleteNotification(ctx, id)
	})
}

// writeBack runs a server update in the background. Failures are logged, the
// local state stands either way.
func (s *Store) writeBack(fn func(context.Context) error) {
	if s.rest == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), serverTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("notification write-back failed", "error", err)
		}
	}()
}

func (s *Store) persistLocked() {
	if s.kv == nil || s.ident.IsZero() {
		return
	}
	raw, err := json.Marshal(s.items)
	if err != nil {
		return
	}
	if err := s.kv.Put(keyPrefix+identity.Key(s.ident), raw); err != nil {
		s.logger.Warn("failed to persist notifications", "error", err)
	}
}

func (s *Store) gaugeLocked() {
	s.metrics.SetUnreadNotifications(s.unreadLocked())
}
