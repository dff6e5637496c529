package reservations

import (
	"context"
	"log/slog"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"github.com/ritmofit/agent/ee/cache"
)

const (
	cacheKey = "reservations"

	// freshWithin is the cheap "still fresh" window: a normal read within it
	// never touches the network.
	freshWithin = 30 * time.Second

	// staleWithin bounds how old a cached copy may be and still be served
	// when a refresh fails.
	staleWithin = 2 * time.Minute
)

// apiClient is the slice of the RitmoFit API this service needs.
type apiClient interface {
	Reservations(ctx context.Context) ([]api.Reservation, error)
	CreateReservation(ctx context.Context, sessionID string) error
	CancelReservation(ctx context.Context, sessionID string) error
}

// Service serves the current user's reservations cache-first: recent reads
// come straight from the cache, refreshes repopulate it, and a failed refresh
// silently falls back to a bounded-age stale copy.
type Service struct {
	slogger *slog.Logger
	client  apiClient
	cache   *cache.Cache
	now     func() time.Time
}

type serviceOption func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) serviceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(slogger *slog.Logger, client apiClient, dataCache *cache.Cache, opts ...serviceOption) *Service {
	s := &Service{
		slogger: slogger.With("component", "reservations"),
		client:  client,
		cache:   dataCache,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Reservations returns the user's reservations. With force unset, a cached
// copy younger than 30 seconds is served without a fetch. With force set, the
// fetch always happens, but a cached copy younger than 2 minutes still backs
// a failed fetch. A fetch failure with no usable cache propagates the
// classified error.
func (s *Service) Reservations(ctx context.Context, force bool) ([]api.Reservation, error) {
	var cached []api.Reservation

	// Freshness is checked via Timestamp rather than a Get with the fresh
	// bound: a Get miss evicts, which would destroy the stale copy the
	// failed-refresh path depends on.
	if !force && s.freshEnough() && s.cache.Get(cacheKey, staleWithin, &cached) {
		return cached, nil
	}

	fetched, err := s.client.Reservations(ctx)
	if err != nil {
		if s.cache.Get(cacheKey, staleWithin, &cached) {
			s.slogger.Log(ctx, slog.LevelInfo,
				"serving stale reservations after failed refresh",
				"err", err,
			)
			return cached, nil
		}
		return nil, err
	}

	s.cache.Set(cacheKey, fetched)
	return fetched, nil
}

func (s *Service) freshEnough() bool {
	ts, ok := s.cache.Timestamp(cacheKey)
	return ok && s.now().Sub(ts) <= freshWithin
}

// Create books a session and invalidates the cached reservation list so the
// next read reflects it.
func (s *Service) Create(ctx context.Context, sessionID string) error {
	if err := s.client.CreateReservation(ctx, sessionID); err != nil {
		return err
	}

	s.cache.Remove(cacheKey)
	return nil
}

// Cancel cancels the reservation for a session and invalidates the cached
// reservation list.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	if err := s.client.CancelReservation(ctx, sessionID); err != nil {
		return err
	}

	s.cache.Remove(cacheKey)
	return nil
}
