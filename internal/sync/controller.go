package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nhle/notification-center/internal/api"
	"github.com/nhle/notification-center/internal/archive"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/store"
	"github.com/nhle/notification-center/internal/stream"
)

// FetchResultMsg is a tea.Msg sent when a page fetch completes and has
// been applied to the store.
type FetchResultMsg struct {
	Notifications []model.Notification
	UnreadCount   int
	Total         int
}

// PushMsg is a tea.Msg sent when a stream event has been applied to the
// store. Broadcast marks records pushed to all subjects.
type PushMsg struct {
	Notification model.Notification
	Broadcast    bool
}

// ConnectionMsg is a tea.Msg carrying the stream connection flag.
type ConnectionMsg struct {
	Connected bool
}

// CountMsg is a tea.Msg sent after an unread-count reconciliation.
type CountMsg struct {
	Count int
}

// ErrorMsg is a tea.Msg sent when a fetch or mutation against the server
// fails. The store keeps its prior state; the user may retry.
type ErrorMsg struct {
	Op  string
	Err error
}

// AuthErrorMsg is a tea.Msg sent when the server rejects the credential.
type AuthErrorMsg struct {
	Message string
}

// Timeouts for one-shot server calls. The stream has its own lifecycle.
const (
	fetchTimeout    = 30 * time.Second
	mutationTimeout = 15 * time.Second
)

// Refresh interval clamp. Settings accept any value; the controller
// refuses to hammer the server or to sleep forever.
const (
	minRefreshInterval     = 10 * time.Second
	defaultRefreshInterval = 60 * time.Second
)

// Controller is the lifecycle glue between the stream connection, the
// HTTP client, and the notification store. It owns the only timer logic
// in the core: the periodic page refetch and unread-count reconciliation
// that backstop the stream against missed or duplicated push events.
type Controller struct {
	store   *store.Store
	client  *api.Client
	stream  *stream.Connection
	archive *archive.Archive

	resultCh  chan tea.Msg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu        gosync.Mutex
	running   bool
	subjectID string
	fetchGen  uint64
}

// New creates a controller. The archive may be nil to disable local
// history.
func New(s *store.Store, client *api.Client, conn *stream.Connection, arc *archive.Archive) *Controller {
	return &Controller{
		store:     s,
		client:    client,
		stream:    conn,
		archive:   arc,
		resultCh:  make(chan tea.Msg, 32),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start wires the stream handlers, connects for the given subject, and
// starts the refresh loop. The returned command waits on the result
// channel and feeds messages to the Bubble Tea runtime. Calling Start
// while running is a no-op.
func (c *Controller) Start(subjectID string) tea.Cmd {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return c.waitForUpdate()
	}
	c.running = true
	c.subjectID = subjectID
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	// Handlers must be registered before Connect so early events are not
	// missed.
	c.registerStreamHandlers()

	if c.store.Settings().EnableStream {
		c.stream.Connect(subjectID)
	}

	go c.refreshLoop(stopCh)
	c.RefreshNow()

	return c.waitForUpdate()
}

// Stop disconnects the stream, detaches its handlers, and halts the
// refresh loop. No store mutation happens after Stop returns; a late,
// slow-arriving event from the torn-down connection has nowhere to land.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	// Bump the generation so a fetch already in flight fails the staleness
	// check instead of applying its result after Stop returns.
	c.fetchGen++
	close(c.stopCh)

	c.stream.Disconnect()
	c.store.SetConnected(false)
}

// registerStreamHandlers wires the stream callbacks into the store and the
// result channel. Disconnect clears handler registrations, so this runs on
// every (re-)enable of the stream, not just once at Start.
func (c *Controller) registerStreamHandlers() {
	c.stream.OnConnected(func(up bool) {
		c.store.SetConnected(up)
		c.send(ConnectionMsg{Connected: up})
	})
	c.stream.OnNotification(func(n model.Notification) {
		c.applyPush(n, false)
	})
	c.stream.OnBroadcast(func(n model.Notification) {
		c.applyPush(n, true)
	})
	c.stream.OnMessage(func(data []byte) {
		log.Debug().Int("bytes", len(data)).Msg("untyped stream message ignored")
	})
}

// RefreshNow requests an immediate fetch + count reconciliation without
// waiting for the next tick.
func (c *Controller) RefreshNow() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// SetFilter merges the patch into the store's filter state and issues a
// fetch for the resulting view. Any in-flight fetch for the previous
// filter is superseded and its result discarded.
func (c *Controller) SetFilter(patch model.FilterPatch) {
	c.store.SetFilter(patch)
	go c.fetchCurrentPage()
}

// ResetFilter restores the default filter and refetches.
func (c *Controller) ResetFilter() {
	c.store.ResetFilter()
	go c.fetchCurrentPage()
}

// UpdateSettings merges the patch into the store's settings. The refresh
// loop picks the new interval up on its next tick; an EnableStream
// transition connects or disconnects the stream immediately rather than
// waiting for a restart.
func (c *Controller) UpdateSettings(patch model.SettingsPatch) model.Settings {
	before := c.store.Settings()
	merged := c.store.UpdateSettings(patch)

	if before.EnableStream != merged.EnableStream {
		if merged.EnableStream {
			c.mu.Lock()
			running, subject := c.running, c.subjectID
			c.mu.Unlock()
			if running && subject != "" {
				// Disconnect cleared the handlers, so re-register before
				// dialing again.
				c.registerStreamHandlers()
				c.stream.Connect(subject)
			}
		} else {
			c.stream.Disconnect()
			c.store.SetConnected(false)
		}
	}

	return merged
}

// MarkRead optimistically marks a record read locally, then confirms with
// the server. On failure an ErrorMsg is emitted and the next
// reconciliation restores server truth.
func (c *Controller) MarkRead(id string) {
	c.store.MarkRead(id)
	go c.mutate("mark-read", func(ctx context.Context) error {
		if err := c.client.MarkRead(ctx, id); err != nil {
			return err
		}
		if c.archive != nil {
			if err := c.archive.MarkRead(ctx, []string{id}); err != nil {
				log.Warn().Err(err).Msg("archive mark-read failed")
			}
		}
		return nil
	})
}

// BatchMarkRead applies MarkRead semantics for each id.
func (c *Controller) BatchMarkRead(ids []string) {
	c.store.BatchMarkRead(ids)
	go c.mutate("batch-mark-read", func(ctx context.Context) error {
		if err := c.client.BatchMarkRead(ctx, ids); err != nil {
			return err
		}
		if c.archive != nil {
			if err := c.archive.MarkRead(ctx, ids); err != nil {
				log.Warn().Err(err).Msg("archive batch mark-read failed")
			}
		}
		return nil
	})
}

// MarkAllRead marks everything read locally and on the server.
func (c *Controller) MarkAllRead() {
	c.store.MarkAllRead()
	go c.mutate("mark-all-read", func(ctx context.Context) error {
		if err := c.client.MarkAllRead(ctx); err != nil {
			return err
		}
		if c.archive != nil {
			if err := c.archive.MarkAllRead(ctx); err != nil {
				log.Warn().Err(err).Msg("archive mark-all-read failed")
			}
		}
		return nil
	})
}

// Delete removes one record locally and on the server.
func (c *Controller) Delete(id string) {
	c.store.DeleteOne(id)
	go c.mutate("delete", func(ctx context.Context) error {
		if err := c.client.Delete(ctx, id); err != nil {
			return err
		}
		if c.archive != nil {
			if err := c.archive.Delete(ctx, []string{id}); err != nil {
				log.Warn().Err(err).Msg("archive delete failed")
			}
		}
		return nil
	})
}

// BatchDelete removes multiple records locally and on the server.
func (c *Controller) BatchDelete(ids []string) {
	c.store.BatchDelete(ids)
	go c.mutate("batch-delete", func(ctx context.Context) error {
		if err := c.client.BatchDelete(ctx, ids); err != nil {
			return err
		}
		if c.archive != nil {
			if err := c.archive.Delete(ctx, ids); err != nil {
				log.Warn().Err(err).Msg("archive batch delete failed")
			}
		}
		return nil
	})
}

// ClearAll empties the store and the server-side list.
func (c *Controller) ClearAll() {
	c.store.ClearAll()
	go c.mutate("clear-all", func(ctx context.Context) error {
		if err := c.client.ClearAll(ctx); err != nil {
			return err
		}
		if c.archive != nil {
			if err := c.archive.Clear(ctx); err != nil {
				log.Warn().Err(err).Msg("archive clear failed")
			}
		}
		return nil
	})
}

// Backfill loads archived notifications into the store so the UI has
// something to show before the first fetch lands. The fetch that follows
// replaces this view wholesale.
func (c *Controller) Backfill(ctx context.Context) {
	if c.archive == nil {
		return
	}
	limit := c.store.Settings().DisplayCount
	records, err := c.archive.Recent(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("archive backfill failed")
		return
	}
	if len(records) == 0 {
		return
	}

	unread := 0
	for _, n := range records {
		if !n.Read {
			unread++
		}
	}
	c.store.ApplyFetchResult(records, unread, store.PageMeta{
		Page:  1,
		Total: len(records),
	})
}

// WaitForUpdate returns a tea.Cmd that waits for the next controller
// message. Call it again after each received message to keep listening.
func (c *Controller) WaitForUpdate() tea.Cmd {
	return c.waitForUpdate()
}

// refreshLoop runs the periodic reconciliation: a refetch of the current
// page plus a standalone unread-count refresh, independent of stream
// health. The count fetched here always overrides locally accumulated
// deltas.
func (c *Controller) refreshLoop(stopCh <-chan struct{}) {
	interval := c.refreshInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if c.store.Settings().AutoRefresh {
				c.fetchCurrentPage()
				c.reconcileCount()
			}
			if next := c.refreshInterval(); next != interval {
				interval = next
				ticker.Reset(next)
			}
		case <-c.triggerCh:
			c.fetchCurrentPage()
			c.reconcileCount()
		}
	}
}

// refreshInterval clamps the configured refresh interval to sane bounds.
func (c *Controller) refreshInterval() time.Duration {
	sec := c.store.Settings().RefreshIntervalSec
	if sec <= 0 {
		return defaultRefreshInterval
	}
	d := time.Duration(sec) * time.Second
	if d < minRefreshInterval {
		return minRefreshInterval
	}
	return d
}

// fetchCurrentPage fetches the store's current filter/page and applies the
// result. Each fetch is stamped with a generation; a result whose
// generation has been superseded (filter changed mid-flight, newer fetch
// issued) is discarded before it can overwrite fresher state.
func (c *Controller) fetchCurrentPage() {
	c.mu.Lock()
	c.fetchGen++
	gen := c.fetchGen
	c.mu.Unlock()

	reqID := uuid.New().String()
	filter := c.store.Filter()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	result, err := c.client.List(ctx, filter)
	if err != nil {
		if api.IsAuthError(err) {
			c.send(AuthErrorMsg{Message: err.Error()})
			return
		}
		log.Warn().Err(err).Str("req", reqID).Msg("notification fetch failed")
		c.send(ErrorMsg{Op: "fetch", Err: err})
		return
	}

	c.mu.Lock()
	stale := gen != c.fetchGen || !c.running
	c.mu.Unlock()
	if stale {
		log.Debug().Str("req", reqID).Msg("discarding superseded fetch result")
		return
	}

	c.store.ApplyFetchResult(result.Notifications, result.UnreadCount, store.PageMeta{
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	})

	if c.archive != nil {
		if err := c.archive.Upsert(ctx, result.Notifications); err != nil {
			log.Warn().Err(err).Msg("archiving fetched notifications failed")
		}
	}

	c.send(FetchResultMsg{
		Notifications: result.Notifications,
		UnreadCount:   result.UnreadCount,
		Total:         result.Total,
	})
}

// reconcileCount refreshes the unread counter from the dedicated count
// endpoint, correcting any drift from dropped or duplicated push events.
func (c *Controller) reconcileCount() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	count, err := c.client.UnreadCount(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("unread count refresh failed")
		return
	}

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}

	c.store.SetUnreadCount(count)
	c.send(CountMsg{Count: count})
}

// applyPush routes one stream record into the store and the archive.
func (c *Controller) applyPush(n model.Notification, broadcast bool) {
	c.store.ApplyPush(n)

	if c.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		if err := c.archive.Upsert(ctx, []model.Notification{n}); err != nil {
			log.Warn().Err(err).Str("id", n.ID).Msg("archiving pushed notification failed")
		}
		cancel()
	}

	c.send(PushMsg{Notification: n, Broadcast: broadcast})
}

// mutate runs one server mutation with a timeout and routes failures to
// the UI.
func (c *Controller) mutate(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		if api.IsAuthError(err) {
			c.send(AuthErrorMsg{Message: err.Error()})
			return
		}
		log.Warn().Err(err).Str("op", op).Msg("notification mutation failed")
		c.send(ErrorMsg{Op: op, Err: err})
	}
}

// send delivers a message on the result channel without blocking.
func (c *Controller) send(msg tea.Msg) {
	select {
	case c.resultCh <- msg:
	default:
		// Drop if the channel is full to avoid blocking stream delivery.
	}
}

// waitForUpdate returns a tea.Cmd that waits for the next message from
// the result channel.
func (c *Controller) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}
