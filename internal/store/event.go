package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/authz"
	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
	"github.com/liorcore/star-journey-sub000/internal/validate"
)

type EventStore struct {
	docs docstore.Store
}

func NewEventStore(docs docstore.Store) *EventStore {
	return &EventStore{docs: docs}
}

// Create makes a new event in the group, owned by principal. The group must
// exist; group ownership is required to create events in it.
func (s *EventStore) Create(ctx context.Context, principal, groupID string, e model.Event) (*model.Event, error) {
	name, err := validate.String(e.Name, model.MaxNameLen, "name")
	if err != nil {
		return nil, err
	}
	if err := validate.Number(e.StarGoal, 0, model.MaxStars, "star_goal"); err != nil {
		return nil, err
	}

	e.Name = name
	e.ID = uuid.New().String()
	e.OwnerID = principal
	e.Guests = []model.Guest{}
	e.Participants = []model.EventParticipant{}
	e.Normalize()

	err = s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		data, err := tx.Get(docstore.GroupPath(principal, groupID))
		if err != nil {
			return err
		}
		g, err := decodeGroup(data)
		if err != nil {
			return err
		}
		if g.OwnerID != principal {
			return fmt.Errorf("create event: %w", apperr.ErrForbidden)
		}
		return tx.Set(docstore.EventPath(principal, groupID, e.ID), e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EventStore) Get(ctx context.Context, tenantID, groupID, eventID string) (*model.Event, error) {
	data, err := s.docs.Get(ctx, docstore.EventPath(tenantID, groupID, eventID))
	if err != nil {
		return nil, err
	}
	return decodeEvent(data)
}

func (s *EventStore) ListByGroup(ctx context.Context, tenantID, groupID string) ([]model.Event, error) {
	docs, err := s.docs.ListChildren(ctx, docstore.GroupPath(tenantID, groupID), docstore.KindEvent)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]model.Event, 0, len(docs))
	for _, d := range docs {
		e, err := decodeEvent(d.Data)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// Update replaces the event's name, icon, end date, and star goal. Owner only.
func (s *EventStore) Update(ctx context.Context, principal, tenantID, groupID, eventID string, name, icon string, endDate time.Time, starGoal int) (*model.Event, error) {
	name, err := validate.String(name, model.MaxNameLen, "name")
	if err != nil {
		return nil, err
	}
	if err := validate.Number(starGoal, 0, model.MaxStars, "star_goal"); err != nil {
		return nil, err
	}

	var updated *model.Event
	err = s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if !authz.CanEditEvent(e, principal) {
			return fmt.Errorf("update event: %w", apperr.ErrForbidden)
		}
		e.Name = name
		e.Icon = icon
		e.EndDate = endDate
		e.StarGoal = starGoal
		e.Normalize()
		updated = e
		return tx.Set(path, e)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the event. Owner only.
func (s *EventStore) Delete(ctx context.Context, principal, tenantID, groupID, eventID string) error {
	err := s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if !authz.CanEditEvent(e, principal) {
			return fmt.Errorf("delete event: %w", apperr.ErrForbidden)
		}
		return tx.Delete(path)
	})
	if err != nil {
		return err
	}

	s.reconcileAfterWrite(ctx, tenantID, groupID)
	return nil
}

// AddGuest grants a principal guest access to the event. Owner only;
// idempotent for an already-present guest.
func (s *EventStore) AddGuest(ctx context.Context, principal, tenantID, groupID, eventID, userID string) error {
	return s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if !authz.CanEditEvent(e, principal) {
			return fmt.Errorf("add guest: %w", apperr.ErrForbidden)
		}
		if e.HasGuest(userID) {
			return nil
		}
		e.Guests = append(e.Guests, model.Guest{UserID: userID, AddedAt: time.Now().UTC()})
		return tx.Set(path, e)
	})
}

// RemoveGuest revokes guest access. Owner only.
func (s *EventStore) RemoveGuest(ctx context.Context, principal, tenantID, groupID, eventID, userID string) error {
	return s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if !authz.CanEditEvent(e, principal) {
			return fmt.Errorf("remove guest: %w", apperr.ErrForbidden)
		}
		kept := e.Guests[:0]
		for _, g := range e.Guests {
			if g.UserID != userID {
				kept = append(kept, g)
			}
		}
		e.Guests = kept
		return tx.Set(path, e)
	})
}

// AddParticipant attaches a group participant to the event with zero stars.
// The existence check and the append run in one transaction, so concurrent
// adds for the same participant cannot both succeed: exactly one link per
// participant per event.
func (s *EventStore) AddParticipant(ctx context.Context, principal, tenantID, groupID, eventID, participantID string) error {
	err := s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if authz.RoleFor(e, principal) == authz.RoleNone {
			return fmt.Errorf("add event participant: %w", apperr.ErrForbidden)
		}
		if e.FindLink(participantID) != nil {
			return fmt.Errorf("participant already linked: %w", apperr.ErrConflict)
		}

		// The link must reference a participant that exists in the same
		// group; dangling references are never created.
		groupData, err := tx.Get(docstore.GroupPath(tenantID, groupID))
		if err != nil {
			return err
		}
		g, err := decodeGroup(groupData)
		if err != nil {
			return err
		}
		if g.FindParticipant(participantID) == nil {
			return fmt.Errorf("participant: %w", apperr.ErrNotFound)
		}

		e.Participants = append(e.Participants, model.EventParticipant{
			ParticipantID: participantID,
			Stars:         0,
			AddedBy:       principal,
		})
		return tx.Set(path, e)
	})
	if err != nil {
		return err
	}

	s.reconcileAfterWrite(ctx, tenantID, groupID)
	return nil
}

// UpdateStars replaces the link's star count. The permission check runs
// against the transactional read of the link, not a stale one.
func (s *EventStore) UpdateStars(ctx context.Context, principal, tenantID, groupID, eventID, participantID string, stars int) error {
	if err := validate.Number(stars, 0, model.MaxStars, "stars"); err != nil {
		return err
	}

	err := s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		link := e.FindLink(participantID)
		if link == nil {
			return fmt.Errorf("event participant: %w", apperr.ErrNotFound)
		}
		if !authz.CanManageStars(e, principal, participantID) {
			return fmt.Errorf("update stars: %w", apperr.ErrForbidden)
		}
		link.Stars = stars
		return tx.Set(path, e)
	})
	if err != nil {
		return err
	}

	s.reconcileAfterWrite(ctx, tenantID, groupID)
	return nil
}

// UpdateParticipant updates a participant's identity fields. The permission
// anchor is the event link (owner, or the guest who added it); the group's
// embedded participant array is written in the same transaction as the event
// check so the two representations cannot diverge.
func (s *EventStore) UpdateParticipant(ctx context.Context, principal, tenantID, groupID, eventID, participantID string, name, icon, color, gender string, age int) error {
	name, err := validate.String(name, model.MaxNameLen, "name")
	if err != nil {
		return err
	}
	if err := validate.Number(age, 0, 120, "age"); err != nil {
		return err
	}

	return s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		evPath := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(evPath)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if e.FindLink(participantID) == nil {
			return fmt.Errorf("event participant: %w", apperr.ErrNotFound)
		}
		if !authz.CanEditParticipant(e, principal, participantID) {
			return fmt.Errorf("update participant: %w", apperr.ErrForbidden)
		}

		groupPath := docstore.GroupPath(tenantID, groupID)
		groupData, err := tx.Get(groupPath)
		if err != nil {
			return err
		}
		g, err := decodeGroup(groupData)
		if err != nil {
			return err
		}
		p := g.FindParticipant(participantID)
		if p == nil {
			return fmt.Errorf("participant: %w", apperr.ErrNotFound)
		}
		p.Name = name
		p.Icon = icon
		p.Color = color
		p.Gender = gender
		p.Age = age
		p.Normalize()
		return tx.Set(groupPath, g)
	})
}

// RemoveParticipant detaches the link from the event. Same permission rule as
// star mutation.
func (s *EventStore) RemoveParticipant(ctx context.Context, principal, tenantID, groupID, eventID, participantID string) error {
	err := s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if e.FindLink(participantID) == nil {
			return fmt.Errorf("event participant: %w", apperr.ErrNotFound)
		}
		if !authz.CanEditParticipant(e, principal, participantID) {
			return fmt.Errorf("remove event participant: %w", apperr.ErrForbidden)
		}

		kept := e.Participants[:0]
		for _, l := range e.Participants {
			if l.ParticipantID != participantID {
				kept = append(kept, l)
			}
		}
		e.Participants = kept
		return tx.Set(path, e)
	})
	if err != nil {
		return err
	}

	s.reconcileAfterWrite(ctx, tenantID, groupID)
	return nil
}

// Complete records an achievement snapshot (stars, goal, icon at time of
// recording) onto every linked participant. Owner only. Idempotent: a
// participant already holding an achievement for this event is skipped.
func (s *EventStore) Complete(ctx context.Context, principal, tenantID, groupID, eventID string) error {
	return s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		evPath := docstore.EventPath(tenantID, groupID, eventID)
		data, err := tx.Get(evPath)
		if err != nil {
			return err
		}
		e, err := decodeEvent(data)
		if err != nil {
			return err
		}
		if !authz.CanEditEvent(e, principal) {
			return fmt.Errorf("complete event: %w", apperr.ErrForbidden)
		}

		groupPath := docstore.GroupPath(tenantID, groupID)
		groupData, err := tx.Get(groupPath)
		if err != nil {
			return err
		}
		g, err := decodeGroup(groupData)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		changed := false
		for _, link := range e.Participants {
			p := g.FindParticipant(link.ParticipantID)
			if p == nil || hasAchievement(p, e.ID) {
				continue
			}
			p.CompletedEvents = append(p.CompletedEvents, model.Achievement{
				EventID:    e.ID,
				EventName:  e.Name,
				Icon:       e.Icon,
				Stars:      link.Stars,
				StarGoal:   e.StarGoal,
				RecordedAt: now,
			})
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.Set(groupPath, g)
	})
}

func hasAchievement(p *model.Participant, eventID string) bool {
	for _, a := range p.CompletedEvents {
		if a.EventID == eventID {
			return true
		}
	}
	return false
}

// reconcileAfterWrite restores the totalStars aggregate after a mutation.
// Best effort: the UI re-reads via subscription, and ReconcileTotals remains
// callable on demand, so a failure here is logged and not surfaced.
func (s *EventStore) reconcileAfterWrite(ctx context.Context, tenantID, groupID string) {
	if err := reconcileTotals(ctx, s.docs, tenantID, groupID); err != nil {
		slog.Error("reconcile totals", "tenant", tenantID, "group", groupID, "error", err)
	}
}
