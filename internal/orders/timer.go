package orders

import (
	"log/slog"
	"sync"
	"time"

	"github.com/campuspantry/portal-sync/internal/model"
)

// ConfirmTimer runs a bounded countdown per newly created order. If the
// countdown reaches zero unconfirmed, the order voids and further order
// creation is blocked until the user acknowledges.
type ConfirmTimer struct {
	window time.Duration
	onVoid func(model.ID)
	logger *slog.Logger

	mu        sync.Mutex
	timers    map[model.ID]*time.Timer
	confirmed map[model.ID]bool
	voided    map[model.ID]bool
	blocked   bool
	stopped   bool
}

// NewConfirmTimer creates a confirmation timer. onVoid fires exactly once per
// expired order, outside the timer's lock.
func NewConfirmTimer(window time.Duration, onVoid func(model.ID), logger *slog.Logger) *ConfirmTimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfirmTimer{
		window:    window,
		onVoid:    onVoid,
		logger:    logger,
		timers:    make(map[model.ID]*time.Timer),
		confirmed: make(map[model.ID]bool),
		voided:    make(map[model.ID]bool),
	}
}

// Start arms the countdown for an order. Starting an already tracked order
// is a no-op.
func (t *ConfirmTimer) Start(id model.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.confirmed[id] || t.voided[id] {
		return
	}
	if _, exists := t.timers[id]; exists {
		return
	}
	t.timers[id] = time.AfterFunc(t.window, func() { t.expire(id) })
}

// Confirm cancels the countdown. It reports whether the order is confirmed
// and whether this call did the confirming: (true, true) on the first call,
// (true, false) on repeats, (false, false) after the order already voided.
func (t *ConfirmTimer) Confirm(id model.ID) (confirmed, first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.voided[id] {
		return false, false
	}
	if t.confirmed[id] {
		return true, false
	}
	t.confirmed[id] = true
	if tm, ok := t.timers[id]; ok {
		tm.Stop()
		delete(t.timers, id)
	}
	return true, true
}

func (t *ConfirmTimer) expire(id model.ID) {
	t.mu.Lock()
	if t.stopped || t.confirmed[id] || t.voided[id] {
		t.mu.Unlock()
		return
	}
	t.voided[id] = true
	t.blocked = true
	delete(t.timers, id)
	cb := t.onVoid
	t.mu.Unlock()

	if cb != nil {
		cb(id)
	}
}

// Blocked reports whether a void is awaiting acknowledgement.
func (t *ConfirmTimer) Blocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked
}

// Acknowledge clears the void block.
func (t *ConfirmTimer) Acknowledge() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocked = false
}

// Reset clears all tracking for a fresh identity session.
func (t *ConfirmTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	t.confirmed = make(map[model.ID]bool)
	t.voided = make(map[model.ID]bool)
	t.blocked = false
	t.stopped = false
}

// Stop clears every pending countdown. No void fires after Stop returns.
func (t *ConfirmTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
}
