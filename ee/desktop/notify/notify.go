package notify

import (
	"log/slog"
)

// Notification is a local alert raised for a newly arrived unread
// notification. NotificationID rides along so a future tap handler can deep
// link back to the server-side notification.
type Notification struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	NotificationID string `json:"notification_id"`
}

// Notifier sends a local alert to the user immediately. Deduplication is the
// caller's responsibility, not the sender's.
type Notifier interface {
	SendNotification(n Notification) error
}

// New returns the OS-appropriate notifier: dbus (with a notify-send fallback)
// on linux, a log-only notifier elsewhere.
func New(slogger *slog.Logger) Notifier {
	return newOsSpecificNotifier(slogger.With("component", "notifier"))
}
