package store

import (
	"sync"

	"github.com/nhle/notification-center/internal/model"
)

// PageMeta carries the server-reported pagination counters that accompany
// a fetch result.
type PageMeta struct {
	Page  int
	Size  int
	Total int
}

// Store is the single source of truth for notification state on the
// client. All reads go through its snapshot accessors and all writes
// through the named mutation operations below; each operation is one
// critical section that leaves the unread counter consistent with the
// record set. The store never touches the network: refetches triggered by
// filter changes are the sync controller's job.
//
// When the full record set is locally resident the unread counter always
// equals the number of unread records. When only a page is resident the
// counter tracks the server-reported total and is adjusted by delta only;
// periodic count reconciliation corrects any drift.
type Store struct {
	mu        sync.Mutex
	records   []model.Notification
	unread    int
	filter    model.ListFilter
	settings  model.Settings
	connected bool
}

// New creates an empty store with the given initial settings.
func New(settings model.Settings) *Store {
	return &Store{
		filter:   model.DefaultListFilter(),
		settings: settings,
	}
}

// Notifications returns a copy of the current record sequence, newest
// first. Mutating the returned slice does not affect the store.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.records))
	copy(out, s.records)
	return out
}

// UnreadCount returns the current unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Filter returns the current filter and pagination state.
func (s *Store) Filter() model.ListFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Settings returns the current settings.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Connected reports the stream connection flag.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetConnected records the stream connection flag for display.
func (s *Store) SetConnected(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = up
}

// ApplyFetchResult replaces the current page wholesale with the server's
// response and adopts the server-reported unread count, overriding any
// locally accumulated estimate. The fetch is authoritative for the
// requested page.
func (s *Store) ApplyFetchResult(records []model.Notification, unreadCount int, meta PageMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]model.Notification, len(records))
	copy(s.records, records)

	if unreadCount < 0 {
		unreadCount = 0
	}
	s.unread = unreadCount

	s.filter.Page = meta.Page
	if meta.Size > 0 {
		s.filter.Size = meta.Size
	}
	s.filter.Total = meta.Total
}

// SetUnreadCount adopts an authoritative unread total from the dedicated
// count endpoint, overriding locally accumulated deltas.
func (s *Store) SetUnreadCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count < 0 {
		count = 0
	}
	s.unread = count
}

// ApplyPush merges a pushed record into the store. A record whose id is
// already present is updated in place (the transport delivers at least
// once, so re-delivery must not double-count); a genuinely new record is
// inserted at the front and the sequence truncated to the display cap,
// with the unread counter adjusted for both the insertion and any unread
// records that fall off the tail.
func (s *Store) ApplyPush(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != n.ID {
			continue
		}
		// Duplicate or server-side update: replace in place, moving the
		// counter only if the read state changed.
		if s.records[i].Read != n.Read {
			if n.Read {
				s.decUnread(1)
			} else {
				s.unread++
			}
		}
		s.records[i] = n
		return
	}

	s.records = append([]model.Notification{n}, s.records...)
	if !n.Read {
		s.unread++
	}

	if max := s.settings.DisplayCount; max > 0 && len(s.records) > max {
		for _, dropped := range s.records[max:] {
			if !dropped.Read {
				s.decUnread(1)
			}
		}
		s.records = s.records[:max]
	}
}

// MarkRead marks one record read, decrementing the unread counter exactly
// once. Already-read or locally unknown ids are a silent no-op: both are
// reachable under normal delivery races.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markReadLocked(id)
}

// BatchMarkRead applies MarkRead semantics per id; the counter moves once
// per record that actually transitioned.
func (s *Store) BatchMarkRead(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.markReadLocked(id)
	}
}

func (s *Store) markReadLocked(id string) {
	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].Read {
				s.records[i].Read = true
				s.decUnread(1)
			}
			return
		}
	}
}

// MarkAllRead marks every local record read and forces the counter to 0.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		s.records[i].Read = true
	}
	s.unread = 0
}

// DeleteOne removes one record; the counter is decremented only if the
// removed record was unread. Unknown ids are a no-op.
func (s *Store) DeleteOne(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
}

// BatchDelete removes each matching record with DeleteOne semantics.
func (s *Store) BatchDelete(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.deleteLocked(id)
	}
}

func (s *Store) deleteLocked(id string) {
	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].Read {
				s.decUnread(1)
			}
			s.records = append(s.records[:i], s.records[i+1:]...)
			return
		}
	}
}

// ClearAll empties the record sequence and zeroes the counter.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.unread = 0
}

// SetFilter merges the patch into the filter state and returns the result.
// Changing any field other than Page resets Page to 1. The caller is
// responsible for refetching.
func (s *Store) SetFilter(patch model.FilterPatch) model.ListFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = patch.Apply(s.filter)
	return s.filter
}

// ResetFilter restores the default filter and first page.
func (s *Store) ResetFilter() model.ListFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = model.DefaultListFilter()
	return s.filter
}

// UpdateSettings merges the patch into the settings. Values are accepted
// as-is; the controller clamps out-of-range intervals before use.
func (s *Store) UpdateSettings(patch model.SettingsPatch) model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = patch.Apply(s.settings)
	return s.settings
}

// decUnread lowers the counter without letting it go negative.
func (s *Store) decUnread(n int) {
	s.unread -= n
	if s.unread < 0 {
		s.unread = 0
	}
}
