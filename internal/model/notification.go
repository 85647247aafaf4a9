package model

import "time"

// NotificationType classifies what kind of event a notification describes.
type NotificationType string

const (
	TypeSystem     NotificationType = "system"
	TypeSession    NotificationType = "session"
	TypeStatistics NotificationType = "statistics"
	TypeWarning    NotificationType = "warning"
	TypeSuccess    NotificationType = "success"
	TypeError      NotificationType = "error"
)

// NotificationPriority orders notifications by urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification is a single notification record as delivered by the server.
// The ID is server-assigned and immutable; Read is the only field mutated
// locally.
type Notification struct {
	// ID is the unique server-assigned identifier.
	ID string `json:"id" db:"id"`

	// Type classifies the notification.
	Type NotificationType `json:"type" db:"type"`

	// Priority indicates urgency; high/urgent arrivals may ring the
	// terminal bell depending on settings.
	Priority NotificationPriority `json:"priority" db:"priority"`

	// Title is the short headline text.
	Title string `json:"title" db:"title"`

	// Content is the optional longer body.
	Content string `json:"content,omitempty" db:"content"`

	// ActionURL and ActionText describe an optional call-to-action link.
	ActionURL  string `json:"action_url,omitempty" db:"action_url"`
	ActionText string `json:"action_text,omitempty" db:"action_text"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"is_read" db:"is_read"`

	// CreatedAt and UpdatedAt are server timestamps.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// ExpiresAt, when set, marks the notification stale after that instant.
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Expired reports whether the notification has passed its expiry time.
// Notifications without an expiry never expire.
func (n Notification) Expired() bool {
	if n.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*n.ExpiresAt)
}
