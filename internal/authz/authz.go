// Package authz derives a principal's role for an event and gates mutations.
// The rules are pure over an already-read event value so repository
// transactions can decide on their own transactional read, not a stale one.
package authz

import (
	"context"
	"encoding/json"

	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
)

type Role string

const (
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
	RoleNone  Role = "none"
)

// RoleFor returns the principal's role on the event.
func RoleFor(e *model.Event, principal string) Role {
	if e == nil {
		return RoleNone
	}
	if e.OwnerID == principal {
		return RoleOwner
	}
	if e.HasGuest(principal) {
		return RoleGuest
	}
	return RoleNone
}

// GetRole reads the event document and derives the principal's role. It fails
// closed: any read error, including a missing event, means RoleNone. It never
// returns an error to the caller.
func GetRole(ctx context.Context, s docstore.Store, principal, tenantID, groupID, eventID string) Role {
	data, err := s.Get(ctx, docstore.EventPath(tenantID, groupID, eventID))
	if err != nil {
		return RoleNone
	}
	var e model.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return RoleNone
	}
	e.Normalize()
	return RoleFor(&e, principal)
}

// CanEditEvent reports whether the principal may mutate the event itself.
// Owner only.
func CanEditEvent(e *model.Event, principal string) bool {
	return RoleFor(e, principal) == RoleOwner
}

// CanEditParticipant reports whether the principal may mutate the given
// participant link: the owner always, a guest only for links they added.
func CanEditParticipant(e *model.Event, principal, participantID string) bool {
	switch RoleFor(e, principal) {
	case RoleOwner:
		return true
	case RoleGuest:
		link := e.FindLink(participantID)
		return link != nil && link.AddedBy == principal
	}
	return false
}

// CanManageStars shares CanEditParticipant's rule. Star mutation and
// participant-metadata mutation are intentionally gated identically.
func CanManageStars(e *model.Event, principal, participantID string) bool {
	return CanEditParticipant(e, principal, participantID)
}
