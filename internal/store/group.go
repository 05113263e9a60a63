package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
	"github.com/liorcore/star-journey-sub000/internal/validate"
)

// Join codes avoid ambiguous characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
const codeLength = 6
const codeAttempts = 5

type GroupStore struct {
	docs docstore.Store
}

func NewGroupStore(docs docstore.Store) *GroupStore {
	return &GroupStore{docs: docs}
}

// codeReservation is the transactional uniqueness document for a join code.
type codeReservation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	GroupID  string `json:"group_id"`
}

// Create makes a new group owned by principal. The join code is reserved in
// the same transaction as the group write, so two groups can never share a
// code; on collision a fresh code is tried.
func (s *GroupStore) Create(ctx context.Context, principal, name string) (*model.Group, error) {
	name, err := validate.String(name, model.MaxNameLen, "name")
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}

		g := &model.Group{
			ID:           uuid.New().String(),
			Name:         name,
			Code:         code,
			OwnerID:      principal,
			Participants: []model.Participant{},
		}

		err = s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
			if _, err := tx.Get(docstore.CodePath(code)); err == nil {
				return fmt.Errorf("join code taken: %w", apperr.ErrConflict)
			} else if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			if err := tx.Set(docstore.CodePath(code), codeReservation{
				ID:       code,
				TenantID: principal,
				GroupID:  g.ID,
			}); err != nil {
				return err
			}

			if err := ensureTenant(tx, principal); err != nil {
				return err
			}

			return tx.Set(docstore.GroupPath(principal, g.ID), g)
		})
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create group: %w", err)
		}
		return g, nil
	}

	return nil, fmt.Errorf("exhausted join code attempts: %w", apperr.ErrConflict)
}

// ensureTenant writes the tenant record on first use; CreatedAt feeds the
// usage scanner's user buckets.
func ensureTenant(tx docstore.Txn, principal string) error {
	_, err := tx.Get(docstore.TenantPath(principal))
	if errors.Is(err, apperr.ErrNotFound) {
		return tx.Set(docstore.TenantPath(principal), model.Tenant{
			ID:        principal,
			CreatedAt: time.Now().UTC(),
		})
	}
	return err
}

func (s *GroupStore) Get(ctx context.Context, tenantID, groupID string) (*model.Group, error) {
	data, err := s.docs.Get(ctx, docstore.GroupPath(tenantID, groupID))
	if err != nil {
		return nil, err
	}
	return decodeGroup(data)
}

func (s *GroupStore) List(ctx context.Context, tenantID string) ([]model.Group, error) {
	docs, err := s.docs.ListChildren(ctx, docstore.TenantPath(tenantID), docstore.KindGroup)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	groups := make([]model.Group, 0, len(docs))
	for _, d := range docs {
		g, err := decodeGroup(d.Data)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

func (s *GroupStore) UpdateName(ctx context.Context, principal, groupID, name string) (*model.Group, error) {
	name, err := validate.String(name, model.MaxNameLen, "name")
	if err != nil {
		return nil, err
	}

	var updated *model.Group
	err = s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.GroupPath(principal, groupID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		g, err := decodeGroup(data)
		if err != nil {
			return err
		}
		if g.OwnerID != principal {
			return fmt.Errorf("rename group: %w", apperr.ErrForbidden)
		}
		g.Name = name
		updated = g
		return tx.Set(path, g)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the group, its events, and its join-code reservation in one
// transaction. Owner only.
func (s *GroupStore) Delete(ctx context.Context, principal, groupID string) error {
	ids, err := eventIDs(ctx, s.docs, principal, groupID)
	if err != nil {
		return err
	}

	return s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.GroupPath(principal, groupID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		g, err := decodeGroup(data)
		if err != nil {
			return err
		}
		if g.OwnerID != principal {
			return fmt.Errorf("delete group: %w", apperr.ErrForbidden)
		}

		for _, id := range ids {
			if err := tx.Delete(docstore.EventPath(principal, groupID, id)); err != nil {
				return err
			}
		}
		if g.Code != "" {
			if err := tx.Delete(docstore.CodePath(g.Code)); err != nil {
				return err
			}
		}
		return tx.Delete(path)
	})
}

// AddParticipant appends a participant to the group. Owner only.
func (s *GroupStore) AddParticipant(ctx context.Context, principal, groupID string, p model.Participant) (*model.Participant, error) {
	name, err := validate.String(p.Name, model.MaxNameLen, "name")
	if err != nil {
		return nil, err
	}
	if err := validate.Number(p.Age, 0, 120, "age"); err != nil {
		return nil, err
	}

	p.Name = name
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.TotalStars = 0
	p.EventCount = 0
	p.CompletedEvents = []model.Achievement{}
	p.Normalize()

	err = s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.GroupPath(principal, groupID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		g, err := decodeGroup(data)
		if err != nil {
			return err
		}
		if g.OwnerID != principal {
			return fmt.Errorf("add participant: %w", apperr.ErrForbidden)
		}
		if g.FindParticipant(p.ID) != nil {
			return fmt.Errorf("participant exists: %w", apperr.ErrConflict)
		}
		g.Participants = append(g.Participants, p)
		return tx.Set(path, g)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteParticipant removes a participant from the group and cascades removal
// of that participant's links from every event in the group, all in one
// transaction. Owner only.
func (s *GroupStore) DeleteParticipant(ctx context.Context, principal, groupID, participantID string) error {
	ids, err := eventIDs(ctx, s.docs, principal, groupID)
	if err != nil {
		return err
	}

	return s.docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.GroupPath(principal, groupID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		g, err := decodeGroup(data)
		if err != nil {
			return err
		}
		if g.OwnerID != principal {
			return fmt.Errorf("delete participant: %w", apperr.ErrForbidden)
		}
		if g.FindParticipant(participantID) == nil {
			return fmt.Errorf("participant: %w", apperr.ErrNotFound)
		}

		kept := g.Participants[:0]
		for _, p := range g.Participants {
			if p.ID != participantID {
				kept = append(kept, p)
			}
		}
		g.Participants = kept

		for _, id := range ids {
			evPath := docstore.EventPath(principal, groupID, id)
			evData, err := tx.Get(evPath)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			e, err := decodeEvent(evData)
			if err != nil {
				return err
			}
			if e.FindLink(participantID) == nil {
				continue
			}
			links := e.Participants[:0]
			for _, l := range e.Participants {
				if l.ParticipantID != participantID {
					links = append(links, l)
				}
			}
			e.Participants = links
			if err := tx.Set(evPath, e); err != nil {
				return err
			}
		}

		return tx.Set(path, g)
	})
}

// ReconcileTotals recomputes every participant's totalStars and eventCount
// from the group's events. Idempotent; callable on demand and run
// best-effort after each star mutation.
func (s *GroupStore) ReconcileTotals(ctx context.Context, tenantID, groupID string) error {
	return reconcileTotals(ctx, s.docs, tenantID, groupID)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
