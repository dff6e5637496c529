package notifications

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"github.com/ritmofit/agent/ee/desktop/notify"
	"github.com/ritmofit/agent/pkg/agent/types"
	"github.com/ritmofit/agent/pkg/log/multislogger"
)

// The platform background-fetch contract: no more than one cycle per 15
// minutes.
const backgroundTaskMinimumInterval = 15 * time.Minute

// unreadFetcher is the slice of the RitmoFit API the background task needs.
type unreadFetcher interface {
	UnreadNotifications(ctx context.Context) ([]api.Notification, error)
}

// BackgroundTask performs single fetch-unread-and-alert cycles independent of
// the foreground poller and reconciler state. It shares the sent-alerts store
// with the reconciler, so whichever of the two sees a notification first is
// the only one to alert for it. Registration lasts the process lifetime; there
// is deliberately no unregister operation.
type BackgroundTask struct {
	slogger     *slog.Logger
	client      unreadFetcher
	alerter     *alerter
	interval    time.Duration
	interrupt   chan struct{}
	interrupted atomic.Bool
}

type backgroundTaskOption func(*BackgroundTask)

func WithBackgroundInterval(interval time.Duration) backgroundTaskOption {
	return func(bt *BackgroundTask) {
		if interval < backgroundTaskMinimumInterval {
			interval = backgroundTaskMinimumInterval
		}
		bt.interval = interval
	}
}

func NewBackgroundTask(slogger *slog.Logger, client unreadFetcher, notifier notify.Notifier, sentAlerts types.KVStore, opts ...backgroundTaskOption) *BackgroundTask {
	slogger = slogger.With("component", "background_task")

	bt := &BackgroundTask{
		slogger: slogger,
		client:  client,
		alerter: &alerter{
			slogger:    slogger,
			notifier:   notifier,
			sentAlerts: sentAlerts,
		},
		interval:  backgroundTaskMinimumInterval,
		interrupt: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(bt)
	}

	return bt
}

// RunOnce performs one background cycle: fetch unread notifications and raise
// a local alert for each one not already alerted.
func (bt *BackgroundTask) RunOnce(ctx context.Context) error {
	ctx = context.WithValue(ctx, multislogger.PollTriggerKey, "background_task")

	unread, err := bt.client.UnreadNotifications(ctx)
	if err != nil {
		bt.slogger.Log(ctx, slog.LevelError,
			"background fetch failed",
			"err", err,
		)
		return err
	}

	alerted := 0
	for _, n := range unread {
		if bt.alerter.sendIfNew(n) {
			alerted += 1
		}
	}

	bt.slogger.Log(ctx, slog.LevelDebug,
		"background cycle complete",
		"unread_count", len(unread),
		"alerted_count", alerted,
	)

	return nil
}

func (bt *BackgroundTask) Execute() error {
	t := time.NewTicker(bt.interval)
	defer t.Stop()

	for {
		select {
		case <-bt.interrupt:
			return nil
		case <-t.C:
			// Errors are logged in RunOnce; a failed cycle must not take the
			// agent down
			bt.RunOnce(context.Background())
		}
	}
}

func (bt *BackgroundTask) Interrupt(_ error) {
	// Only perform shutdown tasks on first call to interrupt -- no need to repeat on potential extra calls.
	if bt.interrupted.Swap(true) {
		return
	}

	bt.interrupt <- struct{}{}
}
