package notifications

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ritmofit/agent/pkg/log/multislogger"
)

const defaultPollInterval = 15 * time.Minute

// fetcher is fulfilled by the Reconciler.
type fetcher interface {
	Fetch(ctx context.Context)
}

// Poller drives the reconciler: one fetch at startup, then a fixed-interval
// tick that fires only while the host reports the app foreground-active, plus
// an immediate fetch whenever the host transitions back to the foreground.
// The host registers itself as the lifecycle observer by calling
// SetForeground; there is no import-time side effect to rely on.
type Poller struct {
	slogger     *slog.Logger
	fetcher     fetcher
	interval    time.Duration
	wake        chan struct{}
	interrupt   chan struct{}
	interrupted atomic.Bool
	foreground  atomic.Bool
}

type pollerOption func(*Poller)

func WithPollInterval(interval time.Duration) pollerOption {
	return func(p *Poller) {
		p.interval = interval
	}
}

func NewPoller(slogger *slog.Logger, f fetcher, opts ...pollerOption) *Poller {
	p := &Poller{
		slogger:   slogger.With("component", "notification_poller"),
		fetcher:   f,
		interval:  defaultPollInterval,
		wake:      make(chan struct{}, 1),
		interrupt: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(p)
	}

	// The process starts in the foreground
	p.foreground.Store(true)

	return p
}

// SetForeground records the host app's lifecycle state. A transition from
// background to foreground wakes the poller for one immediate fetch,
// regardless of where the interval ticker is in its phase.
func (p *Poller) SetForeground(active bool) {
	wasActive := p.foreground.Swap(active)
	if active && !wasActive {
		select {
		case p.wake <- struct{}{}:
		default:
			// A wake is already pending
		}
	}
}

func (p *Poller) Execute() error {
	p.fetch("startup")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.interrupt:
			return nil
		case <-ticker.C:
			if !p.foreground.Load() {
				p.slogger.Log(context.TODO(), slog.LevelDebug,
					"skipping interval fetch while app is backgrounded",
				)
				continue
			}
			p.fetch("interval")
		case <-p.wake:
			p.fetch("foreground_transition")
		}
	}
}

func (p *Poller) Interrupt(_ error) {
	// Only perform shutdown tasks on first call to interrupt -- no need to repeat on potential extra calls.
	if p.interrupted.Swap(true) {
		return
	}

	p.interrupt <- struct{}{}
}

func (p *Poller) fetch(trigger string) {
	ctx := context.WithValue(context.Background(), multislogger.PollTriggerKey, trigger)
	p.fetcher.Fetch(ctx)
}
