// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Push events received/dropped per event name
//   - Identity mismatches and business-key fallback accepts
//   - Reconciliation fetch counts and failures
//   - Activity saves dropped on storage quota
//   - Connection state gauge
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the client's metrics. A nil *Registry is valid and records
// nothing, so components can be wired without metrics in tests.
type Registry struct {
	reg *prometheus.Registry

	EventsReceived      *prometheus.CounterVec
	EventsDropped       *prometheus.CounterVec
	IdentityMismatches  prometheus.Counter
	FallbackAccepts     prometheus.Counter
	ReconcileFetches    prometheus.Counter
	ReconcileFailures   prometheus.Counter
	ActivitySaveDrops   prometheus.Counter
	ConnectionState     prometheus.Gauge
	UnreadNotifications prometheus.Gauge
}

// NewRegistry creates and registers the metric set.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	eventsReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_push_events_received_total",
		Help: "Push events received, by event name.",
	}, []string{"event"})
	eventsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_push_events_dropped_total",
		Help: "Push events dropped before dispatch, by event name.",
	}, []string{"event"})
	identityMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_identity_mismatches_total",
		Help: "Inbound events whose identity did not match the current user.",
	})
	fallbackAccepts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_identity_fallback_accepts_total",
		Help: "Mismatched events accepted via the order-number fallback.",
	})
	reconcileFetches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_reconcile_fetches_total",
		Help: "Full order refetches issued by the reconciliation scheduler.",
	})
	reconcileFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_reconcile_failures_total",
		Help: "Order refetches that failed.",
	})
	activitySaveDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_activity_save_drops_total",
		Help: "Activity cache saves abandoned after the emergency-cap retry.",
	})
	connectionState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_push_connection_state",
		Help: "Push connection state (0=disconnected, 1=connecting, 2=connected, -1=error).",
	})
	unread := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_notifications_unread",
		Help: "Unread notifications in the local inbox.",
	})

	reg.MustRegister(eventsReceived, eventsDropped, identityMismatches,
		fallbackAccepts, reconcileFetches, reconcileFailures,
		activitySaveDrops, connectionState, unread)

	return &Registry{
		reg:                 reg,
		EventsReceived:      eventsReceived,
		EventsDropped:       eventsDropped,
		IdentityMismatches:  identityMismatches,
		FallbackAccepts:     fallbackAccepts,
		ReconcileFetches:    reconcileFetches,
		ReconcileFailures:   reconcileFailures,
		ActivitySaveDrops:   activitySaveDrops,
		ConnectionState:     connectionState,
		UnreadNotifications: unread,
	}
}

// Handler returns the HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Nil-safe recording helpers. Components hold a possibly-nil *Registry.

func (r *Registry) IncEventReceived(event string) {
	if r == nil {
		return
	}
	r.EventsReceived.WithLabelValues(event).Inc()
}

func (r *Registry) IncEventDropped(event string) {
	if r == nil {
		return
	}
	r.EventsDropped.WithLabelValues(event).Inc()
}

func (r *Registry) IncIdentityMismatch() {
	if r == nil {
		return
	}
	r.IdentityMismatches.Inc()
}

func (r *Registry) IncFallbackAccept() {
	if r == nil {
		return
	}
	r.FallbackAccepts.Inc()
}

func (r *Registry) IncReconcileFetch() {
	if r == nil {
		return
	}
	r.ReconcileFetches.Inc()
}

func (r *Registry) IncReconcileFailure() {
	if r == nil {
		return
	}
	r.ReconcileFailures.Inc()
}

func (r *Registry) IncActivitySaveDrop() {
	if r == nil {
		return
	}
	r.ActivitySaveDrops.Inc()
}

func (r *Registry) SetConnectionState(v float64) {
	if r == nil {
		return
	}
	r.ConnectionState.Set(v)
}

func (r *Registry) SetUnreadNotifications(n int) {
	if r == nil {
		return
	}
	r.UnreadNotifications.Set(float64(n))
}
