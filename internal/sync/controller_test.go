package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/api"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/store"
	"github.com/nhle/notification-center/internal/stream"
)

// fakeServer scripts the notification REST API with the uniform
// {code, message, data} envelope.
type fakeServer struct {
	mu        sync.Mutex
	records   []model.Notification
	unread    int
	calls     []string
	listDelay time.Duration // applied when unread_only is NOT set
	failList  bool
}

func (f *fakeServer) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	failList := f.failList
	delay := f.listDelay
	f.mu.Unlock()

	writeEnvelope := func(data interface{}) {
		raw, _ := json.Marshal(data)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    0,
			"message": "ok",
			"data":    json.RawMessage(raw),
		})
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/notifications":
		if failList {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		unreadOnly := r.URL.Query().Get("unread_only") == "true"
		if !unreadOnly && delay > 0 {
			time.Sleep(delay)
		}

		f.mu.Lock()
		records := f.records
		unread := f.unread
		f.mu.Unlock()

		if unreadOnly {
			var filtered []model.Notification
			for _, n := range records {
				if !n.Read {
					filtered = append(filtered, n)
				}
			}
			records = filtered
		}
		writeEnvelope(api.ListResult{
			Notifications: records,
			UnreadCount:   unread,
			Total:         len(records),
			Page:          1,
			Size:          20,
		})

	case r.Method == http.MethodGet && r.URL.Path == "/api/notifications/unread-count":
		f.mu.Lock()
		unread := f.unread
		f.mu.Unlock()
		writeEnvelope(map[string]int{"count": unread})

	default:
		// Mutations succeed with an empty envelope.
		writeEnvelope(nil)
	}
}

func (f *fakeServer) calledPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func record(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.TypeSystem,
		Priority:  model.PriorityNormal,
		Title:     "n-" + id,
		Read:      read,
		CreatedAt: time.Now(),
	}
}

// newTestController wires a controller against the fake server with the
// stream disabled, so only HTTP traffic flows.
func newTestController(t *testing.T, fake *fakeServer) (*Controller, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	settings := model.Settings{
		EnableStream:       false,
		AutoRefresh:        false,
		RefreshIntervalSec: 60,
		DisplayCount:       50,
	}
	s := store.New(settings)
	client := api.NewClient(srv.URL, func() (string, error) { return "tok", nil })
	conn := stream.New(srv.URL, "/stream", func() (string, error) { return "tok", nil })

	ctrl := New(s, client, conn, nil)
	t.Cleanup(ctrl.Stop)
	return ctrl, s
}

func TestStart_fetches_and_applies(t *testing.T) {
	fake := &fakeServer{
		records: []model.Notification{record("1", false), record("2", true)},
		unread:  1,
	}
	ctrl, s := newTestController(t, fake)

	ctrl.Start("subject-1")

	require.Eventually(t, func() bool {
		return len(s.Notifications()) == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestReconcileCount_overrides_local_deltas(t *testing.T) {
	fake := &fakeServer{unread: 9}
	ctrl, s := newTestController(t, fake)

	// Local drift: pushes accumulated a wrong estimate.
	s.ApplyPush(record("x", false))
	require.Equal(t, 1, s.UnreadCount())

	ctrl.Start("subject-1")

	require.Eventually(t, func() bool {
		return s.UnreadCount() == 9
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStaleFetch_is_discarded(t *testing.T) {
	fake := &fakeServer{
		records: []model.Notification{
			record("slow", true),
			record("fast", false),
		},
		unread:    1,
		listDelay: 400 * time.Millisecond,
	}
	ctrl, s := newTestController(t, fake)

	ctrl.Start("subject-1") // issues the slow, unfiltered fetch

	// Supersede it immediately with an unread-only fetch.
	unread := true
	ctrl.SetFilter(model.FilterPatch{UnreadOnly: &unread})

	require.Eventually(t, func() bool {
		got := s.Notifications()
		return len(got) == 1 && got[0].ID == "fast"
	}, 3*time.Second, 10*time.Millisecond)

	// Give the slow fetch time to land; its result must not overwrite the
	// newer view.
	time.Sleep(600 * time.Millisecond)
	got := s.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "fast", got[0].ID)
	assert.True(t, s.Filter().UnreadOnly)
}

func TestMutations_are_optimistic_and_forwarded(t *testing.T) {
	fake := &fakeServer{}
	ctrl, s := newTestController(t, fake)
	s.ApplyPush(record("1", false))

	ctrl.MarkRead("1")
	assert.Equal(t, 0, s.UnreadCount())

	require.Eventually(t, func() bool {
		for _, call := range fake.calledPaths() {
			if call == "PUT /api/notifications/1/read" {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFetchFailure_keeps_prior_state_and_reports(t *testing.T) {
	fake := &fakeServer{failList: true}
	ctrl, s := newTestController(t, fake)
	s.ApplyPush(record("kept", false))

	ctrl.Start("subject-1")

	// The error surfaces on the update channel with a retry affordance.
	found := make(chan ErrorMsg, 1)
	go func() {
		for {
			msg := ctrl.WaitForUpdate()()
			if errMsg, ok := msg.(ErrorMsg); ok {
				found <- errMsg
				return
			}
		}
	}()

	select {
	case errMsg := <-found:
		assert.Equal(t, "fetch", errMsg.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("no ErrorMsg received")
	}

	// Store retains its prior valid state.
	got := s.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
}

func TestStop_halts_updates(t *testing.T) {
	fake := &fakeServer{records: []model.Notification{record("1", false)}, unread: 1}
	ctrl, s := newTestController(t, fake)

	ctrl.Start("subject-1")
	require.Eventually(t, func() bool {
		return len(s.Notifications()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	ctrl.Stop()
	before := len(fake.calledPaths())

	// Triggers after Stop fall on deaf ears.
	ctrl.RefreshNow()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, len(fake.calledPaths()))
}

func TestStop_discards_inflight_fetch(t *testing.T) {
	fake := &fakeServer{
		records:   []model.Notification{record("late", false)},
		unread:    1,
		listDelay: 500 * time.Millisecond,
	}
	ctrl, s := newTestController(t, fake)

	ctrl.Start("subject-1") // the initial fetch is slow

	require.Eventually(t, func() bool {
		for _, call := range fake.calledPaths() {
			if call == "GET /api/notifications" {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	// Stop while the request is still in flight.
	ctrl.Stop()

	// Let the slow response land; it must not reach the store.
	time.Sleep(800 * time.Millisecond)
	assert.Empty(t, s.Notifications())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestEnableStream_toggle_connects_and_disconnects(t *testing.T) {
	fake := &fakeServer{}
	ctrl, _ := newTestController(t, fake)

	ctrl.Start("subject-1")
	assert.Equal(t, stream.StateDisconnected, ctrl.stream.State())

	on := true
	ctrl.UpdateSettings(model.SettingsPatch{EnableStream: &on})
	require.Eventually(t, func() bool {
		return ctrl.stream.State() != stream.StateDisconnected
	}, 3*time.Second, 10*time.Millisecond)

	off := false
	ctrl.UpdateSettings(model.SettingsPatch{EnableStream: &off})
	require.Eventually(t, func() bool {
		return ctrl.stream.State() == stream.StateDisconnected
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRefreshInterval_is_clamped(t *testing.T) {
	fake := &fakeServer{}
	ctrl, s := newTestController(t, fake)

	sec := 1
	s.UpdateSettings(model.SettingsPatch{RefreshIntervalSec: &sec})
	assert.Equal(t, minRefreshInterval, ctrl.refreshInterval())

	sec = 0
	s.UpdateSettings(model.SettingsPatch{RefreshIntervalSec: &sec})
	assert.Equal(t, defaultRefreshInterval, ctrl.refreshInterval())

	sec = 120
	s.UpdateSettings(model.SettingsPatch{RefreshIntervalSec: &sec})
	assert.Equal(t, 120*time.Second, ctrl.refreshInterval())
}
