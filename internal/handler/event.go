package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/auth"
	"github.com/liorcore/star-journey-sub000/internal/authz"
	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/event"
	"github.com/liorcore/star-journey-sub000/internal/model"
	"github.com/liorcore/star-journey-sub000/internal/store"
	"github.com/liorcore/star-journey-sub000/internal/websocket"
)

type EventHandler struct {
	events *store.EventStore
	docs   docstore.Store
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewEventHandler(es *store.EventStore, docs docstore.Store, hub *websocket.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: es, docs: docs, hub: hub, logger: logger}
}

func (h *EventHandler) broadcast(msg websocket.Message, recipients ...string) {
	if h.hub != nil {
		h.hub.Broadcast(msg, recipients...)
	}
}

// notifyEvent re-reads the event and broadcasts to its owner and guests. Used
// after mutations so guest UIs stay in sync too.
func (h *EventHandler) notifyEvent(r *http.Request, action, tenantID, groupID, eventID string) {
	e, err := h.events.Get(r.Context(), tenantID, groupID, eventID)
	if err != nil {
		// Deleted or unreadable; notify the tenant owner only.
		h.broadcast(websocket.NewMessage("event", action, eventID, map[string]any{"group_id": groupID}), tenantID)
		return
	}
	h.broadcast(websocket.NewMessage("event", action, eventID, map[string]any{"group_id": groupID}), eventRecipients(e)...)
}

type eventRequest struct {
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	EndDate  time.Time `json:"end_date"`
	StarGoal int       `json:"star_goal"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	groupID := r.PathValue("groupID")

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	created, err := h.events.Create(r.Context(), principal, groupID, model.Event{
		Name:     req.Name,
		Icon:     req.Icon,
		EndDate:  req.EndDate,
		StarGoal: req.StarGoal,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("event", "created", created.ID, map[string]any{"group_id": groupID}), principal)
	writeJSON(w, http.StatusCreated, created)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")

	events, err := h.events.ListByGroup(r.Context(), tenantID, groupID)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, err)
		return
	}

	// Callers only see events they hold a role on: owners the whole group,
	// guests the events they were invited to.
	visible := make([]model.Event, 0, len(events))
	for i := range events {
		if authz.RoleFor(&events[i], principal) != authz.RoleNone {
			visible = append(visible, events[i])
		}
	}
	writeJSON(w, http.StatusOK, event.WithStatus(visible, time.Now()))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")

	// Fails closed: a principal with no role gets the same 404 as a missing
	// event, so existence never leaks across tenants.
	if authz.GetRole(r.Context(), h.docs, principal, tenantID, groupID, eventID) == authz.RoleNone {
		writeError(w, fmt.Errorf("event: %w", apperr.ErrNotFound))
		return
	}

	e, err := h.events.Get(r.Context(), tenantID, groupID, eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	status, remaining := event.ComputeStatus(*e, time.Now())
	writeJSON(w, http.StatusOK, event.EventWithStatus{Event: *e, Status: status, Remaining: remaining})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	updated, err := h.events.Update(r.Context(), principal, tenantID, groupID, eventID, req.Name, req.Icon, req.EndDate, req.StarGoal)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("event", "updated", eventID, map[string]any{"group_id": groupID}), eventRecipients(updated)...)
	writeJSON(w, http.StatusOK, updated)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")

	if err := h.events.Delete(r.Context(), principal, tenantID, groupID, eventID); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("event", "deleted", eventID, map[string]any{"group_id": groupID}), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

type guestRequest struct {
	UserID string `json:"user_id"`
}

func (h *EventHandler) AddGuest(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")

	var req guestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	if err := h.events.AddGuest(r.Context(), principal, tenantID, groupID, eventID, req.UserID); err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "updated", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) RemoveGuest(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")
	userID := r.PathValue("userID")

	if err := h.events.RemoveGuest(r.Context(), principal, tenantID, groupID, eventID, userID); err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "updated", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusNoContent)
}

type linkRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (h *EventHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "participant_id is required"})
		return
	}

	if err := h.events.AddParticipant(r.Context(), principal, tenantID, groupID, eventID, req.ParticipantID); err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "updated", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusCreated)
}

type starsRequest struct {
	Stars int `json:"stars"`
}

func (h *EventHandler) UpdateStars(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")
	participantID := r.PathValue("participantID")

	var req starsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.events.UpdateStars(r.Context(), principal, tenantID, groupID, eventID, participantID, req.Stars); err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "updated", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")
	participantID := r.PathValue("participantID")

	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	err := h.events.UpdateParticipant(r.Context(), principal, tenantID, groupID, eventID, participantID,
		req.Name, req.Icon, req.Color, req.Gender, req.Age)
	if err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "updated", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")
	participantID := r.PathValue("participantID")

	if err := h.events.RemoveParticipant(r.Context(), principal, tenantID, groupID, eventID, participantID); err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "updated", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusNoContent)
}

// Complete records achievement snapshots for every linked participant.
func (h *EventHandler) Complete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	tenantID := r.PathValue("tenantID")
	groupID := r.PathValue("groupID")
	eventID := r.PathValue("eventID")

	if err := h.events.Complete(r.Context(), principal, tenantID, groupID, eventID); err != nil {
		writeError(w, err)
		return
	}

	h.notifyEvent(r, "completed", tenantID, groupID, eventID)
	w.WriteHeader(http.StatusNoContent)
}
