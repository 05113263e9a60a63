package model

import "time"

type Event struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Icon         string             `json:"icon"`
	EndDate      time.Time          `json:"end_date"`
	StarGoal     int                `json:"star_goal"`
	OwnerID      string             `json:"owner_id"`
	Guests       []Guest            `json:"guests"`
	Participants []EventParticipant `json:"participants"`
}

type Guest struct {
	UserID  string    `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}

// EventParticipant links a group participant to an event. AddedBy records
// which principal attached the participant; it is the basis of guest-scoped
// write permission.
type EventParticipant struct {
	ParticipantID string `json:"participant_id"`
	Stars         int    `json:"stars"`
	AddedBy       string `json:"added_by"`
}

func (e *Event) Normalize() {
	if e.Icon == "" {
		e.Icon = DefaultIcon
	}
	if e.Guests == nil {
		e.Guests = []Guest{}
	}
	if e.Participants == nil {
		e.Participants = []EventParticipant{}
	}
}

// FindLink returns a pointer into the event's participant links, or nil.
func (e *Event) FindLink(participantID string) *EventParticipant {
	for i := range e.Participants {
		if e.Participants[i].ParticipantID == participantID {
			return &e.Participants[i]
		}
	}
	return nil
}

// HasGuest reports whether userID appears in the event's guest list.
func (e *Event) HasGuest(userID string) bool {
	for _, g := range e.Guests {
		if g.UserID == userID {
			return true
		}
	}
	return false
}
