package orders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campuspantry/portal-sync/internal/metrics"
)

// Reconciler debounces full refetches from the REST source of truth. Every
// push-driven update schedules a fetch after a settle delay; a minimum
// interval between fetches absorbs event bursts, and an in-flight flag
// prevents overlap. The very first fetch after an identity becomes available
// bypasses the debounce.
type Reconciler struct {
	settle      time.Duration
	minInterval time.Duration
	retryDelay  time.Duration
	fetch       func(context.Context) error
	logger      *slog.Logger
	metrics     *metrics.Registry

	mu         sync.Mutex
	ctx        context.Context
	timer      *time.Timer
	retryTimer *time.Timer
	inFlight   bool
	rerun      bool
	retried    bool
	lastFetch  time.Time
	cancelled  bool
}

// NewReconciler creates a reconciler around fetch. mreg may be nil.
func NewReconciler(settle, minInterval, retryDelay time.Duration, fetch func(context.Context) error, logger *slog.Logger, mreg *metrics.Registry) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		settle:      settle,
		minInterval: minInterval,
		retryDelay:  retryDelay,
		fetch:       fetch,
		logger:      logger,
		metrics:     mreg,
	}
}

// Schedule (re)arms the settle timer. Calls within the settle window coalesce
// into one fetch.
func (r *Reconciler) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.settle, func() { r.attempt(false) })
}

// FetchNow issues an immediate fetch, bypassing the debounce. Used for the
// initial load when an identity becomes available.
func (r *Reconciler) FetchNow(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.cancelled = false
	r.mu.Unlock()

	go r.attempt(true)
}

// Cancel stops pending timers. No fetch fires after Cancel returns.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.retryTimer != nil {
		r.retryTimer.Stop()
		r.retryTimer = nil
	}
}

func (r *Reconciler) attempt(bypassDebounce bool) {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	if r.inFlight {
		// Coalesce: run once more after the current fetch lands.
		r.rerun = true
		r.mu.Unlock()
		return
	}
	if !bypassDebounce {
		if wait := r.minInterval - time.Since(r.lastFetch); wait > 0 {
			if r.timer != nil {
				r.timer.Stop()
			}
			r.timer = time.AfterFunc(wait, func() { r.attempt(false) })
			r.mu.Unlock()
			return
		}
	}
	r.inFlight = true
	r.lastFetch = time.Now()
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Unlock()

	r.metrics.IncReconcileFetch()
	err := r.fetch(ctx)

	r.mu.Lock()
	r.inFlight = false
	rerun := r.rerun
	r.rerun = false
	if r.cancelled {
		r.mu.Unlock()
		return
	}

	if err != nil {
		r.metrics.IncReconcileFailure()
		if r.retried {
			// Second failure in a row: degrade to last-known-good state.
			// The store keeps its loaded orders and surfaces the error.
			r.retried = false
			r.mu.Unlock()
			r.logger.Warn("reconcile retry failed, keeping last known state", "error", err)
			return
		}
		r.retried = true
		if r.retryTimer != nil {
			r.retryTimer.Stop()
		}
		r.retryTimer = time.AfterFunc(r.retryDelay, func() { r.attempt(false) })
		r.mu.Unlock()
		r.logger.Warn("reconcile fetch failed, retry scheduled",
			"retry_in", r.retryDelay,
			"error", err,
		)
		return
	}

	r.retried = false
	r.mu.Unlock()

	if rerun {
		r.Schedule()
	}
}
