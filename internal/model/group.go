package model

import "time"

// DefaultIcon is applied to participants and events stored without one.
const DefaultIcon = "star"

// MaxStars bounds both a link's star count and an event's star goal.
const MaxStars = 1000

// MaxNameLen bounds group, event, and participant names.
const MaxNameLen = 50

type Group struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Code         string        `json:"code"`
	OwnerID      string        `json:"owner_id"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Icon            string        `json:"icon"`
	Age             int           `json:"age"`
	Color           string        `json:"color"`
	Gender          string        `json:"gender"`
	TotalStars      int           `json:"total_stars"`
	EventCount      int           `json:"event_count"`
	CompletedEvents []Achievement `json:"completed_events"`
}

// Achievement is an append-only snapshot recorded when an event completes.
type Achievement struct {
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	Icon       string    `json:"icon"`
	Stars      int       `json:"stars"`
	StarGoal   int       `json:"star_goal"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Normalize applies defaults to fields older documents may lack. Called
// centrally at decode time so call sites never see nil slices or empty icons.
func (g *Group) Normalize() {
	if g.Participants == nil {
		g.Participants = []Participant{}
	}
	for i := range g.Participants {
		g.Participants[i].Normalize()
	}
}

func (p *Participant) Normalize() {
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.CompletedEvents == nil {
		p.CompletedEvents = []Achievement{}
	}
}

// FindParticipant returns a pointer into the group's participant slice, or nil.
func (g *Group) FindParticipant(participantID string) *Participant {
	for i := range g.Participants {
		if g.Participants[i].ID == participantID {
			return &g.Participants[i]
		}
	}
	return nil
}
