package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"github.com/ritmofit/agent/ee/cache"
	"github.com/ritmofit/agent/ee/desktop/notify"
	"github.com/ritmofit/agent/ee/localserver"
	"github.com/ritmofit/agent/ee/notifications"
	"github.com/ritmofit/agent/ee/reservations"
	"github.com/ritmofit/agent/pkg/agent/storage"
	agentbbolt "github.com/ritmofit/agent/pkg/agent/storage/bbolt"
	"github.com/ritmofit/agent/pkg/agent/tokenstore"
	"github.com/ritmofit/agent/pkg/log/locallogger"
	"github.com/ritmofit/agent/pkg/log/multislogger"
	"github.com/ritmofit/agent/pkg/rungroup"
	"go.etcd.io/bbolt"
)

func main() {
	opts, err := ParseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := runAgent(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAgent(opts *Options) error {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	slogger := multislogger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	if opts.LogFile != "" {
		slogger.AddHandler(locallogger.NewHandler(opts.LogFile))
	}

	if err := os.MkdirAll(opts.RootDirectory, 0o700); err != nil {
		return fmt.Errorf("creating root directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(opts.RootDirectory, "ritmofit-agent.db"), 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	cacheStore, err := agentbbolt.NewStore(slogger.Logger, db, storage.CacheStoreName)
	if err != nil {
		return fmt.Errorf("creating cache store: %w", err)
	}

	sentAlertsStore, err := agentbbolt.NewStore(slogger.Logger, db, storage.SentAlertsStoreName)
	if err != nil {
		return fmt.Errorf("creating sent alerts store: %w", err)
	}

	configStore, err := agentbbolt.NewStore(slogger.Logger, db, storage.AgentConfigStoreName)
	if err != nil {
		return fmt.Errorf("creating config store: %w", err)
	}

	client, err := api.NewClient(slogger.Logger, opts.ServerURL, tokenstore.New(configStore))
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	notifier := notify.New(slogger.Logger)
	reconciler := notifications.NewReconciler(slogger.Logger, client, notifier, sentAlertsStore)
	poller := notifications.NewPoller(slogger.Logger, reconciler,
		notifications.WithPollInterval(opts.PollInterval),
	)
	backgroundTask := notifications.NewBackgroundTask(slogger.Logger, client, notifier, sentAlertsStore,
		notifications.WithBackgroundInterval(opts.BackgroundInterval),
	)

	dataCache := cache.New(slogger.Logger, cacheStore)
	reservationService := reservations.NewService(slogger.Logger, client, dataCache)

	// The loopback server is how the host app reads notification state,
	// manages reservations, and reports foreground transitions.
	localServer := localserver.New(slogger.Logger, reconciler, reservationService, poller)

	runGroup := rungroup.NewRunGroup()
	runGroup.SetSlogger(slogger.Logger)

	runGroup.Add("notificationPoller", poller.Execute, poller.Interrupt)
	runGroup.Add("backgroundTask", backgroundTask.Execute, backgroundTask.Interrupt)
	runGroup.Add("sentAlertsCleanup", reconciler.Execute, reconciler.Interrupt)
	runGroup.Add("localserver", localServer.Execute, localServer.Interrupt)

	sigChannel := make(chan os.Signal, 1)
	signalListener := newSignalListener(sigChannel, slogger.Logger)
	runGroup.Add("signalListener", signalListener.Execute, signalListener.Interrupt)

	slogger.Log(context.TODO(), slog.LevelInfo,
		"ritmofit-agent started",
		"server_url", opts.ServerURL,
		"poll_interval", opts.PollInterval.String(),
	)

	return runGroup.Run()
}
