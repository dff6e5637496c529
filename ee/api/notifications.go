package api

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeSessionCanceled    NotificationType = "SESSION_CANCELED"
	NotificationTypeSessionRescheduled NotificationType = "SESSION_RESCHEDULED"
	NotificationTypeSessionReminder    NotificationType = "SESSION_REMINDER"
	NotificationTypeOther              NotificationType = "OTHER"
)

// SessionRef is read-only denormalized display data attached to a
// notification by the server. This agent never writes it back.
type SessionRef struct {
	ID         string
	ClassTitle string
	BranchName string
}

type Notification struct {
	ID        string
	Type      NotificationType
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
	Session   *SessionRef
}

// wireNotification is the shape the server sends. Session data arrives in two
// historical forms: flattened (classTitle/branchName) or grouped under a
// classRef/branch object. mapping is explicit rather than duck-typed.
type wireNotification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
	Session   *struct {
		ID         string `json:"id"`
		ClassTitle string `json:"classTitle"`
		BranchName string `json:"branchName"`
		ClassRef   *struct {
			Title string `json:"title"`
		} `json:"classRef"`
		Branch *struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"session"`
}

func notificationFromWire(w wireNotification) Notification {
	n := Notification{
		ID:    w.ID,
		Type:  notificationTypeFromWire(w.Type),
		Title: w.Title,
		Body:  w.Body,
		Read:  w.Read,
	}

	// A malformed createdAt maps to the zero time rather than failing the
	// whole batch.
	if createdAt, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		n.CreatedAt = createdAt
	}

	if w.Session != nil {
		ref := &SessionRef{
			ID:         w.Session.ID,
			ClassTitle: w.Session.ClassTitle,
			BranchName: w.Session.BranchName,
		}
		if ref.ClassTitle == "" && w.Session.ClassRef != nil {
			ref.ClassTitle = w.Session.ClassRef.Title
		}
		if ref.BranchName == "" && w.Session.Branch != nil {
			ref.BranchName = w.Session.Branch.Name
		}
		n.Session = ref
	}

	return n
}

func notificationTypeFromWire(raw string) NotificationType {
	switch NotificationType(raw) {
	case NotificationTypeSessionCanceled, NotificationTypeSessionRescheduled, NotificationTypeSessionReminder:
		return NotificationType(raw)
	default:
		return NotificationTypeOther
	}
}

func notificationsFromWire(wire []wireNotification) []Notification {
	notifications := make([]Notification, 0, len(wire))
	for _, w := range wire {
		notifications = append(notifications, notificationFromWire(w))
	}
	return notifications
}
