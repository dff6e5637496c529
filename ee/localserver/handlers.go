package localserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ritmofit/agent/ee/api"
)

type notificationsResponse struct {
	Notifications []api.Notification `json:"notifications"`
	UnreadCount   int                `json:"unread_count"`
	Loading       bool               `json:"loading"`
}

type reservationsResponse struct {
	Reservations []api.Reservation `json:"reservations"`
}

type notificationIdRequest struct {
	NotificationID string `json:"notification_id"`
}

type sessionIdRequest struct {
	SessionID string `json:"session_id"`
}

type appStateRequest struct {
	Foreground bool `json:"foreground"`
}

func (ls *localServer) requestNotificationsHandler() http.Handler {
	return http.HandlerFunc(ls.requestNotificationsHandlerFunc)
}

func (ls *localServer) requestNotificationsHandlerFunc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	notifications := ls.notifications.Notifications()
	if notifications == nil {
		notifications = []api.Notification{}
	}

	ls.writeJSON(w, notificationsResponse{
		Notifications: notifications,
		UnreadCount:   ls.notifications.UnreadCount(),
		Loading:       ls.notifications.Loading(),
	})
}

func (ls *localServer) requestMarkReadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ls.notificationIdFromRequest(w, r)
		if !ok {
			return
		}

		ls.notifications.MarkAsRead(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) requestMarkUnreadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ls.notificationIdFromRequest(w, r)
		if !ok {
			return
		}

		ls.notifications.MarkAsUnread(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) requestMarkAllReadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		ls.notifications.MarkAllAsRead(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) requestDeleteNotificationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ls.notificationIdFromRequest(w, r)
		if !ok {
			return
		}

		ls.notifications.Delete(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) requestReservationsHandler() http.Handler {
	return http.HandlerFunc(ls.requestReservationsHandlerFunc)
}

func (ls *localServer) requestReservationsHandlerFunc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	force := r.URL.Query().Get("force") == "true"

	reservations, err := ls.reservations.Reservations(r.Context(), force)
	if err != nil {
		ls.writeAPIError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []api.Reservation{}
	}

	ls.writeJSON(w, reservationsResponse{Reservations: reservations})
}

func (ls *localServer) requestCreateReservationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := ls.sessionIdFromRequest(w, r)
		if !ok {
			return
		}

		if err := ls.reservations.Create(r.Context(), sessionID); err != nil {
			ls.writeAPIError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) requestCancelReservationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := ls.sessionIdFromRequest(w, r)
		if !ok {
			return
		}

		if err := ls.reservations.Cancel(r.Context(), sessionID); err != nil {
			ls.writeAPIError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) requestAppStateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var req appStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "decoding request body", http.StatusBadRequest)
			return
		}

		ls.lifecycle.SetForeground(req.Foreground)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (ls *localServer) notificationIdFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return "", false
	}

	var req notificationIdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "decoding request body", http.StatusBadRequest)
		return "", false
	}

	if req.NotificationID == "" {
		http.Error(w, "notification_id is required", http.StatusBadRequest)
		return "", false
	}

	return req.NotificationID, true
}

func (ls *localServer) sessionIdFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return "", false
	}

	var req sessionIdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "decoding request body", http.StatusBadRequest)
		return "", false
	}

	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return "", false
	}

	return req.SessionID, true
}

func (ls *localServer) writeJSON(w http.ResponseWriter, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshaling response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// writeAPIError maps a classified upstream error onto the closest local
// status code so the host app can distinguish auth problems from outages.
func (ls *localServer) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case api.ErrorKindUnauthorized:
			status = http.StatusUnauthorized
		case api.ErrorKindNotFound:
			status = http.StatusNotFound
		case api.ErrorKindTimeout:
			status = http.StatusGatewayTimeout
		}
	}
	if errors.Is(err, api.ErrNoToken) {
		status = http.StatusUnauthorized
	}

	ls.slogger.Log(r.Context(), slog.LevelInfo,
		"request failed upstream",
		"path", r.URL.Path,
		"err", err,
	)

	http.Error(w, err.Error(), status)
}
