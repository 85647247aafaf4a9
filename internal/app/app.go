package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/nhle/notification-center/internal/keys"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/store"
	appsync "github.com/nhle/notification-center/internal/sync"
	"github.com/nhle/notification-center/internal/theme"
	"github.com/nhle/notification-center/internal/ui"
	helpview "github.com/nhle/notification-center/internal/ui/help"
	"github.com/nhle/notification-center/internal/ui/notifications"
	"github.com/nhle/notification-center/internal/ui/settingsform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewSettings
	ViewHelp
)

// Model is the root Bubble Tea model that manages view routing, the
// layout, and the sync controller lifecycle.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	store       *store.Store
	ctrl        *appsync.Controller
	keys        *keys.KeyMap
	cfg         *model.AppConfig
	cfgPath     string
	subjectID   string

	notifList    notifications.Model
	helpView     helpview.Model
	settingsView settingsform.Model

	ready   bool
	toast   string
	errText string
}

// New creates the root application model. The controller is started from
// Init, tied to the given subject.
func New(
	cfg *model.AppConfig,
	cfgPath string,
	s *store.Store,
	ctrl *appsync.Controller,
	subjectID string,
) Model {
	k := keys.DefaultKeyMap()

	return Model{
		currentView: ViewList,
		store:       s,
		ctrl:        ctrl,
		keys:        k,
		cfg:         cfg,
		cfgPath:     cfgPath,
		subjectID:   subjectID,
		notifList:   notifications.New(s, ctrl, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init starts the sync controller and begins listening for its updates.
func (m Model) Init() tea.Cmd {
	return m.ctrl.Start(m.subjectID)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.notifList = m.notifList.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		return m.updateActiveView(msg)

	case appsync.FetchResultMsg:
		m.errText = ""
		var cmd tea.Cmd
		m.notifList, cmd = m.notifList.Reload()
		return m, tea.Batch(cmd, m.ctrl.WaitForUpdate())

	case appsync.PushMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.notifList, cmd = m.notifList.Reload()
		cmds = append(cmds, cmd, m.ctrl.WaitForUpdate())

		settings := m.store.Settings()
		if settings.EnableDesktopAlert {
			m.toast = fmt.Sprintf("new: %s", msg.Notification.Title)
		}
		if settings.EnableSound && urgent(msg.Notification) {
			cmds = append(cmds, ringBell)
		}
		return m, tea.Batch(cmds...)

	case appsync.ConnectionMsg:
		return m, m.ctrl.WaitForUpdate()

	case appsync.CountMsg:
		return m, m.ctrl.WaitForUpdate()

	case appsync.ErrorMsg:
		m.errText = fmt.Sprintf("%s failed: %v (press r to retry)", msg.Op, msg.Err)
		return m, m.ctrl.WaitForUpdate()

	case appsync.AuthErrorMsg:
		m.errText = "session expired: log in again to resume"
		return m, m.ctrl.WaitForUpdate()

	case settingsform.DoneMsg:
		m.currentView = ViewList
		if msg.Saved {
			return m, m.applySettings(msg.Patch)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m.updateActiveView(msg)
}

// handleKeys processes global keybindings, deferring the rest to the
// active view.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Settings form owns all input while open.
	if m.currentView == ViewSettings {
		return m.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = ViewList
		} else {
			m.currentView = ViewHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.currentView = ViewList
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.currentView = ViewSettings
		m.settingsView = settingsform.New(m.store.Settings(), m.layout.ContentWidth())
		return m, m.settingsView.Init()
	}

	m.toast = ""
	return m.updateActiveView(msg)
}

// updateActiveView forwards a message to the view that currently owns the
// screen.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	default:
		m.notifList, cmd = m.notifList.Update(msg)
	}
	return m, cmd
}

// applySettings routes a saved settings patch into the controller and
// persists the merged result to the config file.
func (m Model) applySettings(patch model.SettingsPatch) tea.Cmd {
	merged := m.ctrl.UpdateSettings(patch)
	m.cfg.Settings = merged

	return func() tea.Msg {
		if err := model.SaveConfig(m.cfgPath, m.cfg); err != nil {
			log.Warn().Err(err).Msg("saving settings failed")
		}
		return nil
	}
}

// View renders the full frame: header, active view, status bar.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.layout.RenderHeader(
		"Notification Center",
		m.store.UnreadCount(),
		m.store.Connected(),
	)

	var content string
	switch m.currentView {
	case ViewSettings:
		content = m.settingsView.View()
	case ViewHelp:
		content = m.helpView.View()
	default:
		content = m.notifList.View()
	}

	status := m.statusLine()
	return m.layout.RenderWithFrame(header, content, m.layout.RenderStatusBar(status))
}

// statusLine picks what the bottom bar shows: errors first, then toasts,
// then key hints.
func (m Model) statusLine() string {
	if m.errText != "" {
		return theme.ErrorStyle.Render(m.errText)
	}
	if m.toast != "" {
		return theme.ToastStyle.Render(m.toast)
	}
	return "enter mark read · d delete · u unread · s settings · ? help · q quit"
}

// urgent reports whether a notification should ring the bell.
func urgent(n model.Notification) bool {
	return n.Priority == model.PriorityHigh || n.Priority == model.PriorityUrgent
}

// ringBell emits the terminal bell character.
func ringBell() tea.Msg {
	fmt.Print("\a")
	return nil
}
