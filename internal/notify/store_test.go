package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/campuspantry/portal-sync/internal/model"
	"github.com/campuspantry/portal-sync/internal/storage"
)

type fakeAPI struct {
	mu      sync.Mutex
	list    []model.Notification
	updates map[model.ID]bool
	deletes []model.ID
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(map[model.ID]bool)}
}

func (f *fakeAPI) GetNotifications(ctx context.Context, ident model.Identity) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.list...), nil
}

func (f *fakeAPI) UpdateNotification(ctx context.Context, id model.ID, isRead bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = isRead
	return nil
}

func (f *fakeAPI) DeleteNotification(ctx context.Context, id model.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeAPI) updated(id model.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[id]
}

func (f *fakeAPI) deleted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestStore(t *testing.T, rest API, kv storage.Store) *Store {
	t.Helper()
	s := NewStore(DefaultConfig(), rest, kv, nil, nil)
	s.SetIdentity(model.Identity{InternalID: "u1", Email: "s@x.edu"})
	return s
}

func restockPayload(userID, notifID string) json.RawMessage {
	return json.RawMessage(`{"userId":"` + userID + `","notification":{"id":"` + notifID + `","title":"Apples restocked"}}`)
}

func TestStore_HandleRestockEvent(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.HandleRestockEvent(restockPayload("u1", "n1"))
	s.HandleRestockEvent(restockPayload("u1", "n2"))

	got := s.Notifications()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "n2" {
		t.Errorf("newest first violated: got[0].ID = %s", got[0].ID)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
	if s.UnreadCount() != 2 {
		t.Errorf("UnreadCount = %d, want 2", s.UnreadCount())
	}
}

func TestStore_HandleRestockEvent_DropsOtherUsers(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.HandleRestockEvent(restockPayload("u2", "n1"))

	if got := s.Notifications(); len(got) != 0 {
		t.Errorf("foreign restock accepted: %+v", got)
	}
}

func TestStore_HandleRestockEvent_DedupesRedelivery(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.HandleRestockEvent(restockPayload("u1", "n1"))
	s.HandleRestockEvent(restockPayload("u1", "n1"))

	if got := s.Notifications(); len(got) != 1 {
		t.Errorf("redelivered event duplicated: len = %d", len(got))
	}
}

func TestStore_MarkAsRead(t *testing.T) {
	rest := newFakeAPI()
	s := newTestStore(t, rest, nil)
	s.HandleRestockEvent(restockPayload("u1", "n1"))

	s.MarkAsRead("n1")

	if s.UnreadCount() != 0 {
		t.Errorf("UnreadCount = %d, want 0", s.UnreadCount())
	}
	waitFor(t, "server write-back", func() bool { return rest.updated("n1") })

	// Already read: no second round trip.
	s.MarkAsRead("n1")
	// Unknown id: no-op.
	s.MarkAsRead("nope")
	time.Sleep(20 * time.Millisecond)

	rest.mu.Lock()
	n := len(rest.updates)
	rest.mu.Unlock()
	if n != 1 {
		t.Errorf("server updates = %d, want 1", n)
	}
}

func TestStore_MarkAllAsRead(t *testing.T) {
	rest := newFakeAPI()
	s := newTestStore(t, rest, nil)
	s.HandleRestockEvent(restockPayload("u1", "n1"))
	s.HandleRestockEvent(restockPayload("u1", "n2"))

	s.MarkAllAsRead()

	if s.UnreadCount() != 0 {
		t.Errorf("UnreadCount = %d, want 0", s.UnreadCount())
	}
	waitFor(t, "both write-backs", func() bool {
		return rest.updated("n1") && rest.updated("n2")
	})
}

func TestStore_Delete(t *testing.T) {
	rest := newFakeAPI()
	s := newTestStore(t, rest, nil)
	s.HandleRestockEvent(restockPayload("u1", "n1"))

	s.Delete("n1")

	if got := s.Notifications(); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	waitFor(t, "server delete", func() bool { return rest.deleted() == 1 })

	// Unknown id: no server call.
	s.Delete("n1")
	time.Sleep(20 * time.Millisecond)
	if rest.deleted() != 1 {
		t.Errorf("server deletes = %d, want 1", rest.deleted())
	}
}

func TestStore_RefreshIsAuthoritative(t *testing.T) {
	rest := newFakeAPI()
	rest.list = []model.Notification{
		{ID: "n1", Title: "Apples restocked", IsRead: true},
		{ID: "n3", Title: "Bread restocked"},
	}
	s := newTestStore(t, rest, nil)
	s.HandleRestockEvent(restockPayload("u1", "n1"))
	s.HandleRestockEvent(restockPayload("u1", "n2"))

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	got := s.Notifications()
	if len(got) != 2 {
		t.Fatalf("len = %d, want server's 2", len(got))
	}
	if got[0].ID != "n1" || !got[0].IsRead {
		t.Errorf("server read state not taken: %+v", got[0])
	}
	if s.UnreadCount() != 1 {
		t.Errorf("UnreadCount = %d, want 1", s.UnreadCount())
	}
}

func TestStore_PersistsAndReloads(t *testing.T) {
	kv := storage.NewMemory()
	s := newTestStore(t, nil, kv)
	s.HandleRestockEvent(restockPayload("u1", "n1"))
	s.MarkAsRead("n1")

	s2 := NewStore(DefaultConfig(), nil, kv, nil, nil)
	s2.SetIdentity(model.Identity{InternalID: "u1"})

	got := s2.Notifications()
	if len(got) != 1 {
		t.Fatalf("reloaded len = %d, want 1", len(got))
	}
	if !got[0].IsRead {
		t.Error("read state lost across reload")
	}
}

func TestStore_ClearDeletesPersisted(t *testing.T) {
	kv := storage.NewMemory()
	s := newTestStore(t, nil, kv)
	s.HandleRestockEvent(restockPayload("u1", "n1"))

	s.Clear()

	if got := s.Notifications(); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if _, ok, _ := kv.Get("notifications_u1"); ok {
		t.Error("persisted notifications survived Clear")
	}
}
