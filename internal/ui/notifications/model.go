package notifications

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-center/internal/keys"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/store"
	appsync "github.com/nhle/notification-center/internal/sync"
)

// typeCycle is the order the type filter steps through; nil means all.
var typeCycle = []*model.NotificationType{
	nil,
	typePtr(model.TypeSystem),
	typePtr(model.TypeSession),
	typePtr(model.TypeStatistics),
	typePtr(model.TypeWarning),
	typePtr(model.TypeSuccess),
	typePtr(model.TypeError),
}

func typePtr(t model.NotificationType) *model.NotificationType { return &t }

// Model is the notification list view. It renders read-only snapshots of
// the store and forwards user intents (mark-read, delete, filter changes)
// to the sync controller; it never mutates notification state itself.
type Model struct {
	list      list.Model
	store     *store.Store
	ctrl      *appsync.Controller
	keys      *keys.KeyMap
	typeIndex int
	width     int
	height    int
}

// New creates a notification list view bound to the store and controller.
func New(s *store.Store, ctrl *appsync.Controller, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		list:   l,
		store:  s,
		ctrl:   ctrl,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Reload rebuilds the list items from the store snapshot. The app calls
// this whenever the controller reports a state change.
func (m Model) Reload() (Model, tea.Cmd) {
	records := m.store.Notifications()
	items := make([]list.Item, len(records))
	for i, n := range records {
		items[i] = Item{Notification: n}
	}
	cmd := m.list.SetItems(items)

	filter := m.store.Filter()
	m.list.Title = listTitle(filter)
	return m, cmd
}

// SetSize resizes the embedded list.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
	return m
}

// Update handles messages for the notification list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.MarkRead):
		if n, ok := m.selected(); ok && !n.Read {
			m.ctrl.MarkRead(n.ID)
		}
		return m.Reload()

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		m.ctrl.MarkAllRead()
		return m.Reload()

	case key.Matches(keyMsg, m.keys.Delete):
		if n, ok := m.selected(); ok {
			m.ctrl.Delete(n.ID)
		}
		return m.Reload()

	case key.Matches(keyMsg, m.keys.ClearAll):
		m.ctrl.ClearAll()
		return m.Reload()

	case key.Matches(keyMsg, m.keys.ToggleUnread):
		unread := !m.store.Filter().UnreadOnly
		m.ctrl.SetFilter(model.FilterPatch{UnreadOnly: &unread})
		return m.Reload()

	case key.Matches(keyMsg, m.keys.CycleType):
		m.typeIndex = (m.typeIndex + 1) % len(typeCycle)
		m.ctrl.SetFilter(model.FilterPatch{Type: &typeCycle[m.typeIndex]})
		return m.Reload()

	case key.Matches(keyMsg, m.keys.ResetFilter):
		m.typeIndex = 0
		m.ctrl.ResetFilter()
		return m.Reload()

	case key.Matches(keyMsg, m.keys.NextPage):
		filter := m.store.Filter()
		if filter.Page*filter.Size < filter.Total {
			page := filter.Page + 1
			m.ctrl.SetFilter(model.FilterPatch{Page: &page})
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.PrevPage):
		filter := m.store.Filter()
		if filter.Page > 1 {
			page := filter.Page - 1
			m.ctrl.SetFilter(model.FilterPatch{Page: &page})
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Refresh):
		m.ctrl.RefreshNow()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list.
func (m Model) View() string {
	return m.list.View()
}

// selected returns the notification under the cursor.
func (m Model) selected() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notification, true
}

// listTitle names the current view after its active filter.
func listTitle(f model.ListFilter) string {
	title := "Notifications"
	if f.Type != nil {
		title = fmt.Sprintf("Notifications · %s", *f.Type)
	}
	if f.UnreadOnly {
		title += " · unread"
	}
	if f.Total > f.Size && f.Size > 0 {
		pages := (f.Total + f.Size - 1) / f.Size
		title += fmt.Sprintf(" · page %d/%d", f.Page, pages)
	}
	return title
}
