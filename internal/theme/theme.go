package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps full-screen overlay content such as the help view.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadBadgeStyle highlights the unread counter in the header.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// UnreadTitleStyle emphasizes titles of unread notifications.
var UnreadTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadTitleStyle dims titles of notifications already seen.
var ReadTitleStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ExpiredStyle marks notifications past their expiry.
var ExpiredStyle = lipgloss.NewStyle().
	Strikethrough(true).
	Foreground(ColorSubtle)

// TimestampStyle renders relative timestamps on list rows.
var TimestampStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ToastStyle renders the transient arrival line in the status bar.
var ToastStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorYellow)

// ErrorStyle renders fetch/mutation error text with its retry hint.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// SelectedStyle is applied to the selected list row.
var SelectedStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorSubtle)

// TypeStyle returns the badge style for a notification type.
func TypeStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch t {
	case model.TypeError:
		return base.Foreground(ColorRed)
	case model.TypeWarning:
		return base.Foreground(ColorOrange)
	case model.TypeSuccess:
		return base.Foreground(ColorGreen)
	case model.TypeSession:
		return base.Foreground(ColorMagenta)
	case model.TypeStatistics:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// PriorityStyle returns the badge style for a notification priority.
func PriorityStyle(p model.NotificationPriority) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch p {
	case model.PriorityUrgent:
		return base.Bold(true).Foreground(ColorRed)
	case model.PriorityHigh:
		return base.Foreground(ColorOrange)
	case model.PriorityLow:
		return base.Foreground(ColorSubtle)
	default:
		return base.Foreground(ColorGray)
	}
}

// ConnectionBadge renders the stream state shown in the header.
func ConnectionBadge(connected bool) string {
	if connected {
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("● live")
	}
	return lipgloss.NewStyle().Foreground(ColorRed).Render("○ offline")
}
