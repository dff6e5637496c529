package localserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"golang.org/x/time/rate"
)

// Ports the agent will try to bind on loopback, in order. The host app
// probes the same list to find us.
var PortList = []int{
	38519,
	44978,
	52115,
	60287,
}

const (
	defaultRateLimit = 5
	defaultRateBurst = 10
)

// notificationManager is the slice of the notification reconciler the local
// server exposes to the host app.
type notificationManager interface {
	Notifications() []api.Notification
	UnreadCount() int
	Loading() bool
	MarkAsRead(ctx context.Context, notificationID string)
	MarkAsUnread(ctx context.Context, notificationID string)
	MarkAllAsRead(ctx context.Context)
	Delete(ctx context.Context, notificationID string)
}

type reservationService interface {
	Reservations(ctx context.Context, force bool) ([]api.Reservation, error)
	Create(ctx context.Context, sessionID string) error
	Cancel(ctx context.Context, sessionID string) error
}

type foregroundSetter interface {
	SetForeground(active bool)
}

// localServer is the loopback HTTP API the host app talks to: notification
// state and mutations, reservations, and foreground/background transitions.
type localServer struct {
	slogger       *slog.Logger
	srv           *http.Server
	limiter       *rate.Limiter
	notifications notificationManager
	reservations  reservationService
	lifecycle     foregroundSetter
}

func New(slogger *slog.Logger, notifications notificationManager, reservations reservationService, lifecycle foregroundSetter) *localServer {
	ls := &localServer{
		slogger:       slogger.With("component", "localserver"),
		limiter:       rate.NewLimiter(defaultRateLimit, defaultRateBurst),
		notifications: notifications,
		reservations:  reservations,
		lifecycle:     lifecycle,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", http.NotFound)
	mux.Handle("/notifications", ls.requestNotificationsHandler())
	mux.Handle("/notifications/read", ls.requestMarkReadHandler())
	mux.Handle("/notifications/unread", ls.requestMarkUnreadHandler())
	mux.Handle("/notifications/read-all", ls.requestMarkAllReadHandler())
	mux.Handle("/notifications/delete", ls.requestDeleteNotificationHandler())
	mux.Handle("/reservations", ls.requestReservationsHandler())
	mux.Handle("/reservations/create", ls.requestCreateReservationHandler())
	mux.Handle("/reservations/cancel", ls.requestCancelReservationHandler())
	mux.Handle("/app_state", ls.requestAppStateHandler())

	ls.srv = &http.Server{
		Handler: ls.requestLoggingHandler(
			ls.preflightCorsHandler(
				ls.rateLimitHandler(
					mux,
				),
			)),
		ReadTimeout:       500 * time.Millisecond,
		ReadHeaderTimeout: 50 * time.Millisecond,
		WriteTimeout:      30 * time.Second,
		MaxHeaderBytes:    1024,
	}

	return ls
}

func (ls *localServer) Execute() error {
	l, err := ls.startListener()
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}

	if err := ls.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (ls *localServer) Interrupt(_ error) {
	ctx := context.TODO()

	ls.slogger.Log(ctx, slog.LevelDebug,
		"stopping due to interrupt",
	)

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	if err := ls.srv.Shutdown(ctx); err != nil {
		ls.slogger.Log(ctx, slog.LevelError,
			"shutting down",
			"err", err,
		)
	}
}

func (ls *localServer) startListener() (net.Listener, error) {
	ctx := context.TODO()

	for _, p := range PortList {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p))
		if err != nil {
			ls.slogger.Log(ctx, slog.LevelDebug,
				"unable to bind to port, moving on",
				"port", p,
				"err", err,
			)

			continue
		}

		ls.slogger.Log(ctx, slog.LevelInfo,
			"got port",
			"port", p,
		)
		return l, nil
	}

	return nil, errors.New("unable to bind to a local port")
}

func (ls *localServer) preflightCorsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers",
			"Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		// Stop here if its Preflighted OPTIONS request
		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (ls *localServer) rateLimitHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ls.limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)

			ls.slogger.Log(r.Context(), slog.LevelError,
				"over rate limit",
			)

			return
		}

		next.ServeHTTP(w, r)
	})
}
