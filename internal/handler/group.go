package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/liorcore/star-journey-sub000/internal/auth"
	"github.com/liorcore/star-journey-sub000/internal/model"
	"github.com/liorcore/star-journey-sub000/internal/store"
	"github.com/liorcore/star-journey-sub000/internal/websocket"
)

type GroupHandler struct {
	groups *store.GroupStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, hub *websocket.Hub, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, hub: hub, logger: logger}
}

func (h *GroupHandler) broadcast(msg websocket.Message, recipients ...string) {
	if h.hub != nil {
		h.hub.Broadcast(msg, recipients...)
	}
}

type groupRequest struct {
	Name string `json:"name"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	group, err := h.groups.Create(r.Context(), principal, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("group", "created", group.ID, nil), principal)
	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())

	groups, err := h.groups.List(r.Context(), principal)
	if err != nil {
		h.logger.Error("list groups", "error", err)
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())

	group, err := h.groups.Get(r.Context(), principal, r.PathValue("groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	groupID := r.PathValue("groupID")

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	group, err := h.groups.UpdateName(r.Context(), principal, groupID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("group", "updated", group.ID, nil), principal)
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	groupID := r.PathValue("groupID")

	if err := h.groups.Delete(r.Context(), principal, groupID); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("group", "deleted", groupID, nil), principal)
	w.WriteHeader(http.StatusNoContent)
}

type participantRequest struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Age    int    `json:"age"`
	Color  string `json:"color"`
	Gender string `json:"gender"`
}

func (h *GroupHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	groupID := r.PathValue("groupID")

	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	p, err := h.groups.AddParticipant(r.Context(), principal, groupID, model.Participant{
		Name:   req.Name,
		Icon:   req.Icon,
		Age:    req.Age,
		Color:  req.Color,
		Gender: req.Gender,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("participant", "created", p.ID, map[string]any{"group_id": groupID}), principal)
	writeJSON(w, http.StatusCreated, p)
}

func (h *GroupHandler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	groupID := r.PathValue("groupID")
	participantID := r.PathValue("participantID")

	if err := h.groups.DeleteParticipant(r.Context(), principal, groupID, participantID); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("participant", "deleted", participantID, map[string]any{"group_id": groupID}), principal)
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile recomputes cached participant totals for a group on demand.
func (h *GroupHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalID(r.Context())
	groupID := r.PathValue("groupID")

	if err := h.groups.ReconcileTotals(r.Context(), principal, groupID); err != nil {
		writeError(w, err)
		return
	}

	group, err := h.groups.Get(r.Context(), principal, groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}
