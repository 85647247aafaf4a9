package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nhle/notification-center/internal/model"
)

// State describes the lifecycle of the stream connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Reconnection backoff bounds. Delays grow exponentially from base to cap
// with jitter, and reset once a connection is established.
const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second

	// staleThreshold is how long the connection may go without any event
	// (heartbeats included) before it is treated as a transport error.
	staleThreshold = 90 * time.Second

	dialTimeout = 15 * time.Second
)

// TokenSource supplies the bearer credential passed to the stream endpoint
// as a query parameter (the transport cannot carry custom headers).
type TokenSource func() (string, error)

// handlers holds the single active handler per event kind. Last
// registration wins; this is an explicit single-consumer contract, not a
// publish/subscribe bus.
type handlers struct {
	notification func(model.Notification)
	broadcast    func(model.Notification)
	connected    func(bool)
	heartbeat    func()
	message      func([]byte)
}

// Connection maintains one logical subscription to the server's
// notification event stream for a single subject. It reconnects on
// transport failure with capped exponential backoff and delivers decoded
// events to the registered handlers. All methods are safe for concurrent
// use.
type Connection struct {
	baseURL    string
	streamPath string
	tokens     TokenSource
	httpClient *http.Client

	// staleAfter is how long the stream may stay silent before the
	// watchdog severs it. Defaults to staleThreshold; set before Connect.
	staleAfter time.Duration

	mu        sync.Mutex
	state     State
	subjectID string
	cancel    context.CancelFunc
	h         handlers
}

// New creates a disconnected stream connection for the service at baseURL.
// Handlers should be registered before Connect to avoid missing early
// events; late registration is allowed but not retroactive.
func New(baseURL, streamPath string, tokens TokenSource) *Connection {
	return &Connection{
		baseURL:    strings.TrimRight(baseURL, "/"),
		streamPath: streamPath,
		tokens:     tokens,
		// No overall timeout: the stream body is read indefinitely.
		// Liveness is enforced by the staleness watchdog instead.
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: dialTimeout,
			},
		},
		staleAfter: staleThreshold,
	}
}

// OnNotification registers the handler for subject-scoped records.
func (c *Connection) OnNotification(fn func(model.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.notification = fn
}

// OnBroadcast registers the handler for records pushed to all subjects.
func (c *Connection) OnBroadcast(fn func(model.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.broadcast = fn
}

// OnConnected registers the handler for transport open/close signals.
func (c *Connection) OnConnected(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.connected = fn
}

// OnHeartbeat registers the handler for liveness pings.
func (c *Connection) OnHeartbeat(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.heartbeat = fn
}

// OnMessage registers the fallback handler for untyped payloads.
func (c *Connection) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.message = fn
}

// Off removes the handler for the given event kind.
func (c *Connection) Off(kind EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case KindNotification:
		c.h.notification = nil
	case KindBroadcast:
		c.h.broadcast = nil
	case KindConnected:
		c.h.connected = nil
	case KindHeartbeat:
		c.h.heartbeat = nil
	case KindMessage:
		c.h.message = nil
	}
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is currently open.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect begins (or resumes) event delivery for the given subject.
// Calling it while already connecting or connected for the same subject is
// a no-op. If no credential is available the attempt is logged and the
// connection stays disconnected; no retry happens until the next Connect
// after a fresh login.
func (c *Connection) Connect(subjectID string) {
	c.mu.Lock()
	if c.state != StateDisconnected && c.subjectID == subjectID {
		c.mu.Unlock()
		return
	}
	if c.state != StateDisconnected {
		// Different subject: tear the old session down first.
		c.teardownLocked()
	}

	token, err := c.tokens()
	if err != nil || token == "" {
		c.mu.Unlock()
		log.Warn().Err(err).Str("subject", subjectID).
			Msg("stream connect refused: no credential")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.subjectID = subjectID
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()

	go c.run(ctx, subjectID)
}

// Disconnect tears the connection down: the transport is released, pending
// reconnect delays are cancelled, and all handlers are cleared so that a
// late-arriving event from the old session cannot reach the consumer.
// Safe to call from any state; idempotent.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.h = handlers{}
}

// teardownLocked cancels the run loop and resets state. Caller holds mu.
func (c *Connection) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateDisconnected
	c.subjectID = ""
}

// run is the reconnection loop: one iteration per transport session.
func (c *Connection) run(ctx context.Context, subjectID string) {
	attempt := 0

	for {
		c.setState(ctx, StateConnecting)

		err := c.streamOnce(ctx, subjectID, &attempt)
		if ctx.Err() != nil {
			return
		}

		log.Warn().Err(err).Str("subject", subjectID).
			Msg("stream transport lost, scheduling reconnect")
		c.emitConnected(ctx, false)
		c.setState(ctx, StateReconnecting)

		delay := backoffDelay(attempt)
		attempt++

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// streamOnce dials the stream endpoint and pumps events until the
// transport fails or ctx is cancelled. On a successful open it resets the
// caller's backoff attempt counter.
func (c *Connection) streamOnce(ctx context.Context, subjectID string, attempt *int) error {
	token, err := c.tokens()
	if err != nil {
		return fmt.Errorf("refreshing stream credential: %w", err)
	}

	q := url.Values{}
	q.Set("subject_id", subjectID)
	q.Set("token", token)
	endpoint := c.baseURL + c.streamPath + "?" + q.Encode()

	// Per-session context so the staleness watchdog can sever a silent
	// connection without touching the outer reconnect loop.
	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	req, err := http.NewRequestWithContext(sessionCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dialing stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream endpoint returned status %d", resp.StatusCode)
	}

	*attempt = 0
	c.setState(ctx, StateConnected)
	c.emitConnected(ctx, true)
	log.Info().Str("subject", subjectID).Msg("stream connected")

	// Watchdog: no event within staleAfter is treated as a transport
	// error, even if the TCP connection looks healthy.
	watchdog := time.AfterFunc(c.staleAfter, cancelSession)
	defer watchdog.Stop()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev rawEvent
	for scanner.Scan() {
		watchdog.Reset(c.staleAfter)
		line := scanner.Bytes()

		switch {
		case len(bytes.TrimSpace(line)) == 0:
			// Blank line terminates one event.
			if len(ev.data) > 0 {
				c.dispatch(ctx, ev)
			}
			ev = rawEvent{}

		case bytes.HasPrefix(line, []byte("event:")):
			ev.kind = EventKind(string(bytes.TrimSpace(line[len("event:"):])))

		case bytes.HasPrefix(line, []byte("data:")):
			chunk := bytes.TrimSpace(line[len("data:"):])
			if len(ev.data) > 0 {
				ev.data = append(ev.data, '\n')
			}
			ev.data = append(ev.data, chunk...)

		case bytes.HasPrefix(line, []byte(":")):
			// Comment line, used by some servers as a keepalive.
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}

// dispatch decodes one event and invokes the matching handler. Malformed
// payloads are logged and dropped; they never affect connection state.
func (c *Connection) dispatch(ctx context.Context, ev rawEvent) {
	if ctx.Err() != nil {
		return
	}

	kind := ev.kind
	if kind == "" {
		kind = KindMessage
	}

	c.mu.Lock()
	h := c.h
	c.mu.Unlock()

	switch kind {
	case KindNotification, KindBroadcast:
		var n model.Notification
		if err := json.Unmarshal(ev.data, &n); err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).
				Msg("dropping malformed stream payload")
			return
		}
		if kind == KindNotification && h.notification != nil {
			h.notification(n)
		} else if kind == KindBroadcast && h.broadcast != nil {
			h.broadcast(n)
		}

	case KindHeartbeat:
		if h.heartbeat != nil {
			h.heartbeat()
		}

	default:
		if h.message != nil {
			h.message(ev.data)
		}
	}
}

// emitConnected delivers the synthesized connected(bool) signal.
func (c *Connection) emitConnected(ctx context.Context, up bool) {
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	fn := c.h.connected
	c.mu.Unlock()
	if fn != nil {
		fn(up)
	}
}

// setState records a state transition unless the session is already torn
// down.
func (c *Connection) setState(ctx context.Context, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	c.state = s
}

// backoffDelay computes the reconnect delay for the given attempt: capped
// exponential growth with up to 25% jitter.
func backoffDelay(attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	delay := backoffBase << uint(attempt)
	if delay > backoffCap {
		delay = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}
