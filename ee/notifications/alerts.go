package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"github.com/ritmofit/agent/ee/desktop/notify"
	"github.com/ritmofit/agent/pkg/agent/types"
)

const (
	// How long to remember that an alert was raised for a notification ID.
	// Long enough that neither the poller nor the background task can re-alert
	// for anything the server still returns as unread.
	defaultAlertRetentionPeriod = time.Hour * 24 * 30

	// How frequently to check for alert records old enough to drop
	defaultCleanupInterval = time.Hour * 12
)

// alertRecord tracks when a local alert was raised for a notification, stored
// in the shared sent-alerts store keyed by notification ID. The poller and
// the background task both consult it, so a notification alerts at most once
// no matter which cycle sees it first.
type alertRecord struct {
	NotificationID string    `json:"notification_id"`
	SentAt         time.Time `json:"sent_at"`
}

type alerter struct {
	slogger    *slog.Logger
	notifier   notify.Notifier
	sentAlerts types.KVStore
}

// sendIfNew raises a local alert for the notification unless one was already
// recorded, and records it. Reports whether an alert was sent.
func (a *alerter) sendIfNew(n api.Notification) bool {
	if a.alreadySent(n.ID) {
		return false
	}

	if err := a.notifier.SendNotification(notify.Notification{
		Title:          n.Title,
		Body:           n.Body,
		NotificationID: n.ID,
	}); err != nil {
		a.slogger.Log(context.TODO(), slog.LevelError,
			"could not send local alert",
			"notification_id", n.ID,
			"err", err,
		)
		return false
	}

	a.markSent(n.ID)
	return true
}

func (a *alerter) alreadySent(notificationID string) bool {
	sentAlertRaw, err := a.sentAlerts.Get([]byte(notificationID))
	if err != nil {
		a.slogger.Log(context.TODO(), slog.LevelError,
			"could not read sent alerts from store",
			"err", err,
		)
	}

	// No previous record -- alert has not been raised before
	return sentAlertRaw != nil
}

func (a *alerter) markSent(notificationID string) {
	rawRecord, err := json.Marshal(alertRecord{
		NotificationID: notificationID,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		a.slogger.Log(context.TODO(), slog.LevelError,
			"could not marshal sent alert record",
			"notification_id", notificationID,
			"err", err,
		)
		return
	}

	if err := a.sentAlerts.Set([]byte(notificationID), rawRecord); err != nil {
		a.slogger.Log(context.TODO(), slog.LevelError,
			"could not mark alert sent",
			"notification_id", notificationID,
			"err", err,
		)
	}
}

// cleanupSentAlerts drops records old enough that the server can no longer be
// returning their notifications as unread.
func (a *alerter) cleanupSentAlerts(retentionPeriod time.Duration) {
	keysToDelete := make([][]byte, 0)
	if err := a.sentAlerts.ForEach(func(k, v []byte) error {
		var record alertRecord
		if err := json.Unmarshal(v, &record); err != nil {
			// Unreadable record; delete it rather than carrying it forever
			keysToDelete = append(keysToDelete, k)
			return nil
		}

		if record.SentAt.Add(retentionPeriod).Before(time.Now().UTC()) {
			keysToDelete = append(keysToDelete, k)
		}

		return nil
	}); err != nil {
		a.slogger.Log(context.TODO(), slog.LevelError,
			"could not iterate over sent alerts to determine which are expired",
			"err", err,
		)
		return
	}

	if err := a.sentAlerts.Delete(keysToDelete...); err != nil {
		a.slogger.Log(context.TODO(), slog.LevelError,
			"could not delete old sent alert records",
			"err", err,
		)
	}
}
