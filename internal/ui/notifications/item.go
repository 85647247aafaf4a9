package notifications

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{
		string(i.Notification.Type),
		relativeTime(i.Notification.CreatedAt),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering notification rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	var prefix string
	if n.Read {
		prefix = "○"
	} else {
		prefix = "●"
	}

	typeBadge := theme.TypeStyle(n.Type).Render(strings.ToUpper(string(n.Type)))
	priBadge := theme.PriorityStyle(n.Priority).Render(priorityLabel(n.Priority))

	titleStyle := theme.ReadTitleStyle
	if !n.Read {
		titleStyle = theme.UnreadTitleStyle
	}
	if n.Expired() {
		titleStyle = theme.ExpiredStyle
	}
	title := titleStyle.Render(n.Title)

	ts := theme.TimestampStyle.Render(relativeTime(n.CreatedAt))

	action := ""
	if n.ActionText != "" {
		action = theme.TimestampStyle.Render(" → " + n.ActionText)
	}

	line := fmt.Sprintf("%s %s %s %s %s%s", prefix, typeBadge, priBadge, title, ts, action)

	if index == m.Index() {
		line = theme.SelectedStyle.Render("> " + line)
	} else {
		line = "  " + line
	}

	fmt.Fprint(w, line)
}

// priorityLabel maps a priority to its short badge text.
func priorityLabel(p model.NotificationPriority) string {
	switch p {
	case model.PriorityUrgent:
		return "!!"
	case model.PriorityHigh:
		return "!"
	case model.PriorityLow:
		return "·"
	default:
		return " "
	}
}

// relativeTime formats t as a compact age like "5m" or "2d".
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
