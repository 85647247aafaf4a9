package stream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/model"
)

// sseScript drives one scripted SSE endpoint. Each string sent on events
// is written as-is to the current connection; closing a connection is
// requested by sending closeConn.
const closeConn = "\x00close"

type sseScript struct {
	events  chan string
	conns   atomic.Int32
	lastReq sync.Map // query param name -> value of most recent request
}

func newSSEScript() *sseScript {
	return &sseScript{events: make(chan string, 16)}
}

func (s *sseScript) handler(w http.ResponseWriter, r *http.Request) {
	s.conns.Add(1)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			s.lastReq.Store(k, v[0])
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()

	for {
		select {
		case ev := <-s.events:
			if ev == closeConn {
				return
			}
			fmt.Fprint(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *sseScript) query(key string) string {
	v, ok := s.lastReq.Load(key)
	if !ok {
		return ""
	}
	return v.(string)
}

func notificationEvent(id string) string {
	return fmt.Sprintf(
		"event: notification\ndata: {\"id\":%q,\"type\":\"system\",\"title\":\"t\",\"is_read\":false}\n\n",
		id,
	)
}

func staticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

func newTestConnection(t *testing.T, script *sseScript) (*Connection, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(script.handler))
	t.Cleanup(srv.Close)

	conn := New(srv.URL, "/", staticToken("secret"))
	t.Cleanup(conn.Disconnect)
	return conn, srv
}

func TestConnect_delivers_events(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)

	var mu sync.Mutex
	var received []model.Notification
	conn.OnNotification(func(n model.Notification) {
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
	})

	conn.Connect("subject-1")

	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	script.events <- notificationEvent("n1")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "n1", received[0].ID)
	mu.Unlock()

	// Credential and subject travel as query parameters.
	assert.Equal(t, "secret", script.query("token"))
	assert.Equal(t, "subject-1", script.query("subject_id"))
}

func TestConnect_without_credential_stays_disconnected(t *testing.T) {
	script := newSSEScript()
	srv := httptest.NewServer(http.HandlerFunc(script.handler))
	t.Cleanup(srv.Close)

	conn := New(srv.URL, "/", func() (string, error) {
		return "", fmt.Errorf("keyring empty")
	})
	t.Cleanup(conn.Disconnect)

	conn.Connect("subject-1")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, conn.State())
	assert.Equal(t, int32(0), script.conns.Load())
}

func TestConnect_is_idempotent(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)

	conn.Connect("subject-1")
	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	conn.Connect("subject-1")
	conn.Connect("subject-1")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), script.conns.Load())
}

func TestMalformedPayload_is_dropped_not_fatal(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)

	var count atomic.Int32
	conn.OnNotification(func(model.Notification) { count.Add(1) })

	conn.Connect("subject-1")
	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	script.events <- "event: notification\ndata: {not json\n\n"
	script.events <- notificationEvent("good")

	require.Eventually(t, func() bool { return count.Load() == 1 },
		3*time.Second, 10*time.Millisecond)
	assert.True(t, conn.IsConnected())
}

func TestReconnect_resumes_delivery_without_reregistering(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)

	var connFlags []bool
	var mu sync.Mutex
	conn.OnConnected(func(up bool) {
		mu.Lock()
		connFlags = append(connFlags, up)
		mu.Unlock()
	})

	var count atomic.Int32
	conn.OnNotification(func(model.Notification) { count.Add(1) })

	conn.Connect("subject-1")
	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	// Server drops the connection; the client must come back on its own.
	script.events <- closeConn
	require.Eventually(t, func() bool {
		return script.conns.Load() >= 2 && conn.IsConnected()
	}, 10*time.Second, 20*time.Millisecond)

	// Delivery resumes on the new transport with the original handler.
	script.events <- notificationEvent("after-reconnect")
	require.Eventually(t, func() bool { return count.Load() == 1 },
		3*time.Second, 10*time.Millisecond)

	// connected(false) was emitted before the reconnect attempt.
	mu.Lock()
	assert.Contains(t, connFlags, false)
	mu.Unlock()
}

func TestDisconnect_suppresses_late_events(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)

	var count atomic.Int32
	conn.OnNotification(func(model.Notification) { count.Add(1) })

	conn.Connect("subject-1")
	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	conn.Disconnect()
	assert.Equal(t, StateDisconnected, conn.State())

	// An event arriving for the torn-down session has nowhere to go.
	select {
	case script.events <- notificationEvent("late"):
	default:
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())

	// Disconnect is idempotent.
	conn.Disconnect()
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestOff_removes_handler(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)

	var count atomic.Int32
	conn.OnNotification(func(model.Notification) { count.Add(1) })
	conn.Off(KindNotification)

	conn.Connect("subject-1")
	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	script.events <- notificationEvent("ignored")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func TestSilentConnection_triggers_reconnect(t *testing.T) {
	script := newSSEScript()
	conn, _ := newTestConnection(t, script)
	conn.staleAfter = 200 * time.Millisecond

	conn.Connect("subject-1")
	require.Eventually(t, conn.IsConnected, 3*time.Second, 10*time.Millisecond)

	// The server never sends anything, not even a heartbeat. The watchdog
	// must sever the connection and the client must dial again on its own.
	require.Eventually(t, func() bool {
		return script.conns.Load() >= 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBackoffDelay_grows_and_caps(t *testing.T) {
	first := backoffDelay(0)
	assert.GreaterOrEqual(t, first, backoffBase)
	assert.Less(t, first, 2*backoffBase)

	huge := backoffDelay(20)
	assert.GreaterOrEqual(t, huge, backoffCap)
	assert.LessOrEqual(t, huge, backoffCap+backoffCap/4)
}
