package api

import (
	"time"
)

type Reservation struct {
	ID         string
	SessionID  string
	ClassTitle string
	BranchName string
	StartsAt   time.Time
	Status     string
}

// wireReservation mirrors the reservation shape from GET /reservations/me.
// Like notifications, session display data may arrive flattened or grouped.
type wireReservation struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	ClassTitle string `json:"classTitle"`
	BranchName string `json:"branchName"`
	StartsAt   string `json:"startsAt"`
	Status     string `json:"status"`
	Session    *struct {
		ID       string `json:"id"`
		StartsAt string `json:"startsAt"`
		ClassRef *struct {
			Title string `json:"title"`
		} `json:"classRef"`
		Branch *struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"session"`
}

func reservationFromWire(w wireReservation) Reservation {
	r := Reservation{
		ID:         w.ID,
		SessionID:  w.SessionID,
		ClassTitle: w.ClassTitle,
		BranchName: w.BranchName,
		Status:     w.Status,
	}

	startsAtRaw := w.StartsAt
	if w.Session != nil {
		if r.SessionID == "" {
			r.SessionID = w.Session.ID
		}
		if r.ClassTitle == "" && w.Session.ClassRef != nil {
			r.ClassTitle = w.Session.ClassRef.Title
		}
		if r.BranchName == "" && w.Session.Branch != nil {
			r.BranchName = w.Session.Branch.Name
		}
		if startsAtRaw == "" {
			startsAtRaw = w.Session.StartsAt
		}
	}

	if startsAt, err := time.Parse(time.RFC3339, startsAtRaw); err == nil {
		r.StartsAt = startsAt
	}

	return r
}

func reservationsFromWire(wire []wireReservation) []Reservation {
	reservations := make([]Reservation, 0, len(wire))
	for _, w := range wire {
		reservations = append(reservations, reservationFromWire(w))
	}
	return reservations
}
