package localserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ritmofit/agent/ee/api"
	"github.com/ritmofit/agent/pkg/log/multislogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationManager struct {
	mu            sync.Mutex
	notifications []api.Notification
	unreadCount   int
	loading       bool

	readIDs      []string
	unreadIDs    []string
	markAllCount int
	deletedIDs   []string
}

func (f *fakeNotificationManager) Notifications() []api.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifications
}

func (f *fakeNotificationManager) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unreadCount
}

func (f *fakeNotificationManager) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *fakeNotificationManager) MarkAsRead(_ context.Context, notificationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readIDs = append(f.readIDs, notificationID)
}

func (f *fakeNotificationManager) MarkAsUnread(_ context.Context, notificationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreadIDs = append(f.unreadIDs, notificationID)
}

func (f *fakeNotificationManager) MarkAllAsRead(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllCount += 1
}

func (f *fakeNotificationManager) Delete(_ context.Context, notificationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, notificationID)
}

type fakeReservationService struct {
	reservations []api.Reservation
	err          error

	forceValues []bool
	createdIDs  []string
	canceledIDs []string
}

func (f *fakeReservationService) Reservations(_ context.Context, force bool) ([]api.Reservation, error) {
	f.forceValues = append(f.forceValues, force)
	if f.err != nil {
		return nil, f.err
	}
	return f.reservations, nil
}

func (f *fakeReservationService) Create(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.createdIDs = append(f.createdIDs, sessionID)
	return nil
}

func (f *fakeReservationService) Cancel(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.canceledIDs = append(f.canceledIDs, sessionID)
	return nil
}

type fakeLifecycle struct {
	states []bool
}

func (f *fakeLifecycle) SetForeground(active bool) {
	f.states = append(f.states, active)
}

type testServer struct {
	ls           *localServer
	server       *httptest.Server
	manager      *fakeNotificationManager
	reservations *fakeReservationService
	lifecycle    *fakeLifecycle
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	manager := &fakeNotificationManager{}
	reservations := &fakeReservationService{}
	lifecycle := &fakeLifecycle{}

	ls := New(multislogger.NewNopLogger(), manager, reservations, lifecycle)
	server := httptest.NewServer(ls.srv.Handler)
	t.Cleanup(server.Close)

	return &testServer{
		ls:           ls,
		server:       server,
		manager:      manager,
		reservations: reservations,
		lifecycle:    lifecycle,
	}
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestNotificationsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.manager.notifications = []api.Notification{
		{ID: "n1", Title: "Canceled", Read: false, CreatedAt: time.Now()},
	}
	ts.manager.unreadCount = 1

	resp, err := http.Get(ts.server.URL + "/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body notificationsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "n1", body.Notifications[0].ID)
	assert.Equal(t, 1, body.UnreadCount)
	assert.False(t, body.Loading)
}

func TestNotificationsEndpoint_EmptyListIsNotNull(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.manager.loading = true

	resp, err := http.Get(ts.server.URL + "/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["notifications"]))
	assert.JSONEq(t, `true`, string(raw["loading"]))
}

func TestNotificationsEndpoint_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.postJSON(t, "/notifications", map[string]string{})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNotificationMutationEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.postJSON(t, "/notifications/read", notificationIdRequest{NotificationID: "n1"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.postJSON(t, "/notifications/unread", notificationIdRequest{NotificationID: "n2"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.postJSON(t, "/notifications/read-all", map[string]string{})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.postJSON(t, "/notifications/delete", notificationIdRequest{NotificationID: "n3"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, []string{"n1"}, ts.manager.readIDs)
	assert.Equal(t, []string{"n2"}, ts.manager.unreadIDs)
	assert.Equal(t, 1, ts.manager.markAllCount)
	assert.Equal(t, []string{"n3"}, ts.manager.deletedIDs)
}

func TestNotificationMutation_MissingID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.postJSON(t, "/notifications/read", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ts.manager.readIDs)
}

func TestReservationsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.reservations.reservations = []api.Reservation{
		{ID: "r1", ClassTitle: "Yoga"},
	}

	resp, err := http.Get(ts.server.URL + "/reservations")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body reservationsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Reservations, 1)
	assert.Equal(t, "r1", body.Reservations[0].ID)

	assert.Equal(t, []bool{false}, ts.reservations.forceValues)
}

func TestReservationsEndpoint_Force(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/reservations?force=true")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []bool{true}, ts.reservations.forceValues)
}

func TestReservationsEndpoint_UpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		upstreamErr    error
		expectedStatus int
	}{
		{
			name:           "unauthorized",
			upstreamErr:    &api.APIError{Kind: api.ErrorKindUnauthorized, StatusCode: 401, Op: "GET /reservations/me"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "no token",
			upstreamErr:    api.ErrNoToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "timeout",
			upstreamErr:    &api.APIError{Kind: api.ErrorKindTimeout, Op: "GET /reservations/me"},
			expectedStatus: http.StatusGatewayTimeout,
		},
		{
			name:           "network",
			upstreamErr:    &api.APIError{Kind: api.ErrorKindNetwork, Op: "GET /reservations/me"},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "unclassified",
			upstreamErr:    errors.New("something else"),
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			ts.reservations.err = tt.upstreamErr

			resp, err := http.Get(ts.server.URL + "/reservations")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestReservationMutationEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.postJSON(t, "/reservations/create", sessionIdRequest{SessionID: "s1"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.postJSON(t, "/reservations/cancel", sessionIdRequest{SessionID: "s2"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, []string{"s1"}, ts.reservations.createdIDs)
	assert.Equal(t, []string{"s2"}, ts.reservations.canceledIDs)
}

func TestAppStateEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.postJSON(t, "/app_state", appStateRequest{Foreground: false})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.postJSON(t, "/app_state", appStateRequest{Foreground: true})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, []bool{false, true}, ts.lifecycle.states)
}

func TestUnknownPathIs404(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	// burst past the limiter; later requests must be rejected
	sawTooManyRequests := false
	for i := 0; i < defaultRateBurst*3; i += 1 {
		resp, err := http.Get(ts.server.URL + "/notifications")
		require.NoError(t, err)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			sawTooManyRequests = true
			break
		}
	}

	assert.True(t, sawTooManyRequests)
}

func TestPreflightShortCircuits(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.server.URL+"/notifications/read", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:19006")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:19006", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, ts.manager.readIDs)
}
