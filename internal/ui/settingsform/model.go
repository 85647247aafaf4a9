package settingsform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/notification-center/internal/model"
)

// DoneMsg signals the settings view should close. When Saved is true the
// patch carries the fields the user changed.
type DoneMsg struct {
	Saved bool
	Patch model.SettingsPatch
}

// Model is the Bubble Tea model for the settings editor.
type Model struct {
	form  *huh.Form
	width int

	// Form field values (huh binds to these).
	formStream       bool
	formDesktopAlert bool
	formSound        bool
	formAutoRefresh  bool
	formInterval     string
	formDisplayCount string
}

// New creates a settings form pre-filled from the current settings.
func New(current model.Settings, width int) Model {
	m := Model{
		width:            width,
		formStream:       current.EnableStream,
		formDesktopAlert: current.EnableDesktopAlert,
		formSound:        current.EnableSound,
		formAutoRefresh:  current.AutoRefresh,
		formInterval:     strconv.Itoa(current.RefreshIntervalSec),
		formDisplayCount: strconv.Itoa(current.DisplayCount),
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Live stream").
				Description("Receive notifications over the event stream").
				Value(&m.formStream),
			huh.NewConfirm().
				Title("Desktop alerts").
				Description("Show a toast line when a notification arrives").
				Value(&m.formDesktopAlert),
			huh.NewConfirm().
				Title("Sound").
				Description("Ring the terminal bell for high/urgent arrivals").
				Value(&m.formSound),
			huh.NewConfirm().
				Title("Auto refresh").
				Description("Periodically refetch as a backstop for the stream").
				Value(&m.formAutoRefresh),
			huh.NewInput().
				Title("Refresh interval (seconds)").
				Placeholder("60").
				Value(&m.formInterval).
				Validate(validateInt("Refresh interval")),
			huh.NewInput().
				Title("Display count").
				Description("Maximum notifications kept in the list").
				Placeholder("50").
				Value(&m.formDisplayCount).
				Validate(validateInt("Display count")),
		),
	).WithWidth(m.width)
}

// Update drives the form and emits DoneMsg on completion or abort.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		patch := m.patch()
		return m, func() tea.Msg { return DoneMsg{Saved: true, Patch: patch} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	return m.form.View()
}

// patch converts the bound form values into a settings patch.
func (m Model) patch() model.SettingsPatch {
	interval, _ := strconv.Atoi(strings.TrimSpace(m.formInterval))
	display, _ := strconv.Atoi(strings.TrimSpace(m.formDisplayCount))

	return model.SettingsPatch{
		EnableStream:       &m.formStream,
		EnableDesktopAlert: &m.formDesktopAlert,
		EnableSound:        &m.formSound,
		AutoRefresh:        &m.formAutoRefresh,
		RefreshIntervalSec: &interval,
		DisplayCount:       &display,
	}
}

// validateInt rejects non-numeric input for a named field.
func validateInt(name string) func(string) error {
	return func(v string) error {
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s must be a number", name)
		}
		return nil
	}
}
