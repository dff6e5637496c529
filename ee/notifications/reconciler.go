package notifications

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"github.com/ritmofit/agent/ee/desktop/notify"
	"github.com/ritmofit/agent/pkg/agent/types"
)

// apiClient is the slice of the RitmoFit API the reconciler needs. The
// ee/api client fulfills it; tests substitute fakes.
type apiClient interface {
	AllNotifications(ctx context.Context) ([]api.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkUnread(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, notificationID string) error
}

// Reconciler owns the local view of the user's notifications: the full list,
// the unread count, and the previous poll's unread count used to detect newly
// arrived items. Fetches are serialized under fetchMu, so overlapping triggers
// (interval tick plus a foreground wake) cannot interleave their state writes;
// the state mutex is held only for the swap, so readers never wait out a
// network call.
type Reconciler struct {
	slogger *slog.Logger
	client  apiClient
	alerter *alerter

	fetchMu sync.Mutex

	mu                  sync.Mutex
	notifications       []api.Notification
	unreadCount         int
	previousUnreadCount int
	loading             bool

	alertRetentionPeriod time.Duration
	cleanupInterval      time.Duration
	interrupt            chan struct{}
	interrupted          atomic.Bool
}

type reconcilerOption func(*Reconciler)

func WithAlertRetentionPeriod(retentionPeriod time.Duration) reconcilerOption {
	return func(r *Reconciler) {
		r.alertRetentionPeriod = retentionPeriod
	}
}

func WithCleanupInterval(cleanupInterval time.Duration) reconcilerOption {
	return func(r *Reconciler) {
		r.cleanupInterval = cleanupInterval
	}
}

func NewReconciler(slogger *slog.Logger, client apiClient, notifier notify.Notifier, sentAlerts types.KVStore, opts ...reconcilerOption) *Reconciler {
	slogger = slogger.With("component", "notification_reconciler")

	r := &Reconciler{
		slogger: slogger,
		client:  client,
		alerter: &alerter{
			slogger:    slogger,
			notifier:   notifier,
			sentAlerts: sentAlerts,
		},
		loading:              true,
		alertRetentionPeriod: defaultAlertRetentionPeriod,
		cleanupInterval:      defaultCleanupInterval,
		interrupt:            make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Fetch retrieves the full notification list, raises one local alert per
// newly arrived unread item, and replaces the in-memory state. On failure it
// logs and leaves the last-known-good state untouched so the UI does not
// flicker to empty.
func (r *Reconciler) Fetch(ctx context.Context) {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	allNotifications, err := r.client.AllNotifications(ctx)
	if err != nil {
		r.slogger.Log(ctx, slog.LevelError,
			"could not fetch notifications",
			"err", err,
		)

		r.mu.Lock()
		r.loading = false
		r.mu.Unlock()
		return
	}

	unread := make([]api.Notification, 0, len(allNotifications))
	for _, n := range allNotifications {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	newUnreadCount := len(unread)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Alert only for the delta versus the previous poll. The first load is
	// excluded so that a backlog that predates agent startup does not flood
	// the user with alerts.
	if newUnreadCount > r.previousUnreadCount && r.previousUnreadCount > 0 {
		for _, n := range unread[:newUnreadCount-r.previousUnreadCount] {
			r.alerter.sendIfNew(n)
		}
	}

	r.notifications = allNotifications
	r.unreadCount = newUnreadCount
	r.previousUnreadCount = newUnreadCount
	r.loading = false
}

// Notifications returns a snapshot ordered unread-first, then by createdAt
// descending. The order is computed here rather than stored.
func (r *Reconciler) Notifications() []api.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]api.Notification, len(r.notifications))
	copy(snapshot, r.notifications)

	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].Read != snapshot[j].Read {
			return !snapshot[i].Read
		}
		return snapshot[i].CreatedAt.After(snapshot[j].CreatedAt)
	})

	return snapshot
}

func (r *Reconciler) UnreadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unreadCount
}

func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Mutations apply their local state change whether or not the server call
// succeeds: the backend may not implement every endpoint (mark-unread is
// known to 404), and the next poll reconciles any divergence. Failures are
// logged only.

func (r *Reconciler) MarkAsRead(ctx context.Context, notificationID string) {
	if err := r.client.MarkRead(ctx, notificationID); err != nil {
		r.slogger.Log(ctx, slog.LevelError,
			"could not mark notification read on server, applying locally",
			"notification_id", notificationID,
			"err", err,
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID != notificationID {
			continue
		}
		if !r.notifications[i].Read {
			r.notifications[i].Read = true
			r.unreadCount = max(0, r.unreadCount-1)
		}
		return
	}
}

func (r *Reconciler) MarkAsUnread(ctx context.Context, notificationID string) {
	if err := r.client.MarkUnread(ctx, notificationID); err != nil {
		logLevel := slog.LevelError
		if api.IsNotFound(err) {
			// Expected against backends without the unread endpoint
			logLevel = slog.LevelDebug
		}
		r.slogger.Log(ctx, logLevel,
			"could not mark notification unread on server, applying locally",
			"notification_id", notificationID,
			"err", err,
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID != notificationID {
			continue
		}
		if r.notifications[i].Read {
			r.notifications[i].Read = false
			r.unreadCount += 1
		}
		return
	}
}

func (r *Reconciler) MarkAllAsRead(ctx context.Context) {
	if err := r.client.MarkAllRead(ctx); err != nil {
		r.slogger.Log(ctx, slog.LevelError,
			"could not mark all notifications read on server, applying locally",
			"err", err,
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		r.notifications[i].Read = true
	}
	r.unreadCount = 0
}

func (r *Reconciler) Delete(ctx context.Context, notificationID string) {
	if err := r.client.DeleteNotification(ctx, notificationID); err != nil {
		r.slogger.Log(ctx, slog.LevelError,
			"could not delete notification on server, applying locally",
			"notification_id", notificationID,
			"err", err,
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID != notificationID {
			continue
		}
		if !r.notifications[i].Read {
			r.unreadCount = max(0, r.unreadCount-1)
		}
		r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
		return
	}
}

// Execute runs the periodic cleanup of old sent-alert records, so the
// reconciler can sit in the agent's rungroup.
func (r *Reconciler) Execute() error {
	t := time.NewTicker(r.cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-r.interrupt:
			return nil
		case <-t.C:
			r.alerter.cleanupSentAlerts(r.alertRetentionPeriod)
		}
	}
}

func (r *Reconciler) Interrupt(_ error) {
	// Only perform shutdown tasks on first call to interrupt -- no need to repeat on potential extra calls.
	if r.interrupted.Swap(true) {
		return
	}

	r.interrupt <- struct{}{}
}
