//go:build !linux
// +build !linux

package notify

import (
	"context"
	"log/slog"
)

// On platforms without a wired desktop notification transport, alerts are
// logged rather than displayed.
type logNotifier struct {
	slogger *slog.Logger
}

func newOsSpecificNotifier(slogger *slog.Logger) *logNotifier {
	return &logNotifier{
		slogger: slogger,
	}
}

func (l *logNotifier) SendNotification(n Notification) error {
	l.slogger.Log(context.TODO(), slog.LevelInfo,
		"local alert",
		"title", n.Title,
		"body", n.Body,
		"notification_id", n.NotificationID,
	)

	return nil
}
