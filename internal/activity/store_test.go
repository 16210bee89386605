package activity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/campuspantry/portal-sync/internal/api"
	"github.com/campuspantry/portal-sync/internal/model"
	"github.com/campuspantry/portal-sync/internal/storage"
)

func newTestStore(t *testing.T, cfg Config, kv storage.Store) *Store {
	t.Helper()
	s := NewStore(cfg, kv, nil, nil)
	s.SetIdentity(model.Identity{InternalID: "u1", Email: "s@x.edu"})
	return s
}

func TestStore_RecordFillsDefaults(t *testing.T) {
	s := newTestStore(t, DefaultConfig(), nil)

	s.Record(model.Activity{Type: model.ActivityCartAdd, Description: "added apples"})
	s.Record(model.Activity{Type: model.ActivityCheckout, Description: "checked out"})

	got := s.Activities()
	if len(got) != 2 {
		t.Fatalf("len(activities) = %d, want 2", len(got))
	}
	if got[0].Type != model.ActivityCheckout {
		t.Errorf("order wrong: newest entry is %s, want checkout", got[0].Type)
	}
	for _, a := range got {
		if a.ID == "" {
			t.Error("entry missing generated id")
		}
		if a.Timestamp.IsZero() {
			t.Error("entry missing timestamp")
		}
		if a.Identity.InternalID != "u1" {
			t.Errorf("entry identity = %+v, want the store's", a.Identity)
		}
	}
}

func TestStore_ClaimDedupPerOrder(t *testing.T) {
	s := newTestStore(t, DefaultConfig(), nil)

	s.Record(model.Activity{Type: model.ActivityClaimed, OrderNumber: "ORD-100"})
	s.Record(model.Activity{Type: model.ActivityClaimed, OrderNumber: "ORD-100"})

	if got := s.Activities(); len(got) != 1 {
		t.Fatalf("duplicate claimed entries: len = %d, want 1", len(got))
	}

	// A release for the same order replaces the claimed entry in place.
	s.Record(model.Activity{Type: model.ActivityOrderReleased, OrderNumber: "ORD-100"})
	got := s.Activities()
	if len(got) != 1 {
		t.Fatalf("release did not supersede: len = %d, want 1", len(got))
	}
	if got[0].Type != model.ActivityOrderReleased {
		t.Errorf("Type = %s, want order_released", got[0].Type)
	}

	// A later claimed entry never downgrades the release.
	s.Record(model.Activity{Type: model.ActivityClaimed, OrderNumber: "ORD-100"})
	got = s.Activities()
	if len(got) != 1 || got[0].Type != model.ActivityOrderReleased {
		t.Errorf("release downgraded: %+v", got)
	}

	// Different order numbers do not dedup.
	s.Record(model.Activity{Type: model.ActivityClaimed, OrderNumber: "ORD-200"})
	if got := s.Activities(); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestStore_CapEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cap = 3
	s := newTestStore(t, cfg, nil)

	for _, desc := range []string{"a", "b", "c", "d", "e"} {
		s.Record(model.Activity{Type: model.ActivityCartAdd, Description: desc})
	}

	got := s.Activities()
	if len(got) != 3 {
		t.Fatalf("len = %d, want cap of 3", len(got))
	}
	if got[0].Description != "e" || got[2].Description != "c" {
		t.Errorf("wrong survivors: %q, %q, %q", got[0].Description, got[1].Description, got[2].Description)
	}
}

func TestStore_PersistsAndReloads(t *testing.T) {
	kv := storage.NewMemory()

	s := newTestStore(t, DefaultConfig(), kv)
	s.Record(model.Activity{Type: model.ActivityOrderPlaced, OrderNumber: "ORD-100"})
	s.Record(model.Activity{Type: model.ActivityClaimed, OrderNumber: "ORD-100"})

	// Fresh store, same backing kv, same user under a different but
	// equivalent representation (matching email, no internal id).
	s2 := NewStore(DefaultConfig(), kv, nil, nil)
	s2.SetIdentity(model.Identity{InternalID: "u1", Email: "S@X.EDU"})

	got := s2.Activities()
	if len(got) != 2 {
		t.Fatalf("reloaded len = %d, want 2", len(got))
	}
	if got[0].Type != model.ActivityClaimed {
		t.Errorf("reloaded order wrong: newest = %s", got[0].Type)
	}
}

func TestStore_LoadFiltersForeignEntries(t *testing.T) {
	kv := storage.NewMemory()

	// Persisted trail contains an entry belonging to another user under the
	// same key, e.g. after an account handover on a shared machine.
	trail := []model.Activity{
		{ID: "a1", Identity: model.Identity{InternalID: "u1"}, Type: model.ActivityCheckout},
		{ID: "a2", Identity: model.Identity{InternalID: "u2", Email: "other@x.edu"}, Type: model.ActivityCheckout},
	}
	raw, _ := json.Marshal(trail)
	if err := kv.Put("activities_u1", raw); err != nil {
		t.Fatal(err)
	}

	s := NewStore(DefaultConfig(), kv, nil, nil)
	s.SetIdentity(model.Identity{InternalID: "u1"})

	got := s.Activities()
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("loaded entries = %+v, want only a1", got)
	}
}

func TestStore_LoadDropsEntriesWithoutIdentity(t *testing.T) {
	kv := storage.NewMemory()

	// An entry with no identity at all matches the current user by no
	// resolver rule and must not be loaded. The store always stamps an
	// identity on write, so such entries only come from tampered or
	// hand-written trails.
	trail := []model.Activity{
		{ID: "a1", Type: model.ActivityCheckout},
	}
	raw, _ := json.Marshal(trail)
	if err := kv.Put("activities_u1", raw); err != nil {
		t.Fatal(err)
	}

	s := NewStore(DefaultConfig(), kv, nil, nil)
	s.SetIdentity(model.Identity{InternalID: "u1"})

	if got := s.Activities(); len(got) != 0 {
		t.Errorf("loaded %d entries with zero identity, want 0", len(got))
	}
}

func TestStore_ClearDeletesPersisted(t *testing.T) {
	kv := storage.NewMemory()
	s := newTestStore(t, DefaultConfig(), kv)
	s.Record(model.Activity{Type: model.ActivityCartAdd})

	s.Clear()

	if got := s.Activities(); len(got) != 0 {
		t.Errorf("activities after Clear = %d, want 0", len(got))
	}
	if _, ok, _ := kv.Get("activities_u1"); ok {
		t.Error("persisted trail survived Clear")
	}
}

// quotaKV rejects writes holding more than maxEntries activities.
type quotaKV struct {
	*storage.Memory
	maxEntries int
}

func (q *quotaKV) Put(key string, value []byte) error {
	var items []model.Activity
	if err := json.Unmarshal(value, &items); err == nil && len(items) > q.maxEntries {
		return storage.ErrQuotaExceeded
	}
	return q.Memory.Put(key, value)
}

func TestStore_QuotaFallsBackToEmergencyCap(t *testing.T) {
	kv := &quotaKV{Memory: storage.NewMemory(), maxEntries: 3}
	cfg := DefaultConfig()
	cfg.Cap = 10
	cfg.EmergencyCap = 3

	s := newTestStore(t, cfg, kv)
	for i := 0; i < 5; i++ {
		s.Record(model.Activity{Type: model.ActivityCartAdd})
	}

	// In memory the full trail is kept.
	if got := s.Activities(); len(got) != 5 {
		t.Errorf("in-memory len = %d, want 5", len(got))
	}

	raw, ok, _ := kv.Get("activities_u1")
	if !ok {
		t.Fatal("nothing persisted")
	}
	var persisted []model.Activity
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 3 {
		t.Errorf("persisted len = %d, want emergency cap of 3", len(persisted))
	}
}

func TestStore_QuotaDropIsSilent(t *testing.T) {
	kv := &quotaKV{Memory: storage.NewMemory(), maxEntries: 0}
	s := newTestStore(t, DefaultConfig(), kv)

	// Both the full write and the emergency retry fail; Record must not
	// error or panic, and the in-memory trail still grows.
	s.Record(model.Activity{Type: model.ActivityCartAdd})

	if got := s.Activities(); len(got) != 1 {
		t.Errorf("in-memory len = %d, want 1", len(got))
	}
}

func TestStore_HandleClaimEvent(t *testing.T) {
	tests := []struct {
		name            string
		acceptUnmatched bool
		payload         string
		want            int
	}{
		{
			name:    "matching user id",
			payload: `{"userId":"u1","orderId":"o1","orderNumber":"ORD-100"}`,
			want:    1,
		},
		{
			name:    "numeric user id",
			payload: `{"userId":1,"orderNumber":"ORD-100"}`,
			want:    0, // "1" does not match "u1"
		},
		{
			name:            "mismatch with order number, fallback on",
			acceptUnmatched: true,
			payload:         `{"userId":"u2","orderNumber":"ORD-100"}`,
			want:            1,
		},
		{
			name:    "mismatch with order number, fallback off",
			payload: `{"userId":"u2","orderNumber":"ORD-100"}`,
			want:    0,
		},
		{
			name:            "mismatch without order number",
			acceptUnmatched: true,
			payload:         `{"userId":"u2","orderId":"o1"}`,
			want:            0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AcceptUnmatched = tt.acceptUnmatched
			s := newTestStore(t, cfg, nil)

			s.HandleClaimEvent(json.RawMessage(tt.payload))

			got := s.Activities()
			if len(got) != tt.want {
				t.Fatalf("recorded %d entries, want %d", len(got), tt.want)
			}
			if tt.want == 1 && got[0].Type != model.ActivityOrderReleased {
				t.Errorf("Type = %s, want order_released", got[0].Type)
			}
		})
	}
}

type claimedOrders []model.Order

func (c claimedOrders) GetAllOrders(ctx context.Context, opts api.ListOrdersOptions) ([]model.Order, error) {
	if opts.Status != model.StatusClaimed {
		return nil, nil
	}
	return c, nil
}

func TestStore_SyncFromServer(t *testing.T) {
	s := newTestStore(t, DefaultConfig(), nil)

	// ORD-100 already has a live release entry; only ORD-200 needs backfill.
	s.Record(model.Activity{Type: model.ActivityOrderReleased, OrderNumber: "ORD-100"})

	src := claimedOrders{
		{ID: "o1", OrderNumber: "ORD-100", Status: model.StatusClaimed},
		{ID: "o2", OrderNumber: "ORD-200", Status: model.StatusClaimed, ClaimedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	if err := s.SyncFromServer(context.Background(), src); err != nil {
		t.Fatalf("SyncFromServer failed: %v", err)
	}

	got := s.Activities()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	byNumber := map[string]model.Activity{}
	for _, a := range got {
		byNumber[a.OrderNumber] = a
	}
	if byNumber["ORD-100"].Type != model.ActivityOrderReleased {
		t.Errorf("ORD-100 downgraded to %s", byNumber["ORD-100"].Type)
	}
	if byNumber["ORD-200"].Type != model.ActivityClaimed {
		t.Errorf("ORD-200 = %s, want claimed", byNumber["ORD-200"].Type)
	}
	if byNumber["ORD-200"].Timestamp.IsZero() {
		t.Error("backfilled entry missing claim timestamp")
	}

	// A second sync is a no-op.
	if err := s.SyncFromServer(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if got := s.Activities(); len(got) != 2 {
		t.Errorf("resync duplicated entries: len = %d", len(got))
	}
}
