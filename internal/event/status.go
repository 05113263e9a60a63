// Package event derives display status from an event's end date. The end date
// drives countdowns only; nothing is enforced or expired automatically.
package event

import (
	"time"

	"github.com/liorcore/star-journey-sub000/internal/model"
)

type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusEndingSoon Status = "ending_soon"
	StatusEnded      Status = "ended"
)

// endingSoonWindow is how close to the end date an event counts as ending soon.
const endingSoonWindow = 72 * time.Hour

type EventWithStatus struct {
	model.Event
	Status    Status
	Remaining time.Duration
}

// ComputeStatus determines the countdown status for an event at a given
// instant. Remaining is zero once the event has ended.
func ComputeStatus(e model.Event, now time.Time) (Status, time.Duration) {
	remaining := e.EndDate.Sub(now)
	if remaining <= 0 {
		return StatusEnded, 0
	}
	if remaining <= endingSoonWindow {
		return StatusEndingSoon, remaining
	}
	return StatusUpcoming, remaining
}

// WithStatus annotates events with their countdown status at now.
func WithStatus(events []model.Event, now time.Time) []EventWithStatus {
	out := make([]EventWithStatus, 0, len(events))
	for _, e := range events {
		status, remaining := ComputeStatus(e, now)
		out = append(out, EventWithStatus{Event: e, Status: status, Remaining: remaining})
	}
	return out
}

// DaysRemaining returns the whole days left before the end date, never
// negative. Partial days round up so the countdown matches a calendar view.
func DaysRemaining(e model.Event, now time.Time) int {
	remaining := e.EndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
