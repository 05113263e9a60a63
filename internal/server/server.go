package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/auth"
	"github.com/liorcore/star-journey-sub000/internal/authz"
	"github.com/liorcore/star-journey-sub000/internal/backup"
	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/handler"
	"github.com/liorcore/star-journey-sub000/internal/live"
	"github.com/liorcore/star-journey-sub000/internal/middleware"
	"github.com/liorcore/star-journey-sub000/internal/model"
	"github.com/liorcore/star-journey-sub000/internal/reporting"
	"github.com/liorcore/star-journey-sub000/internal/store"
	ws "github.com/liorcore/star-journey-sub000/internal/websocket"
)

type Server struct {
	docs    docstore.Store
	hub     *ws.Hub
	watcher *live.Watcher
	groupH  *handler.GroupHandler
	eventH  *handler.EventHandler
	reportH *handler.ReportHandler
	issuer  *auth.Issuer
	backup  *backup.Manager
	logger  *slog.Logger
}

func New(docs docstore.Store, issuer *auth.Issuer, backupMgr *backup.Manager, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	groupStore := store.NewGroupStore(docs)
	eventStore := store.NewEventStore(docs)
	scanner := reporting.NewScanner(docs, logger)

	return &Server{
		docs:    docs,
		hub:     hub,
		watcher: live.NewWatcher(docs, logger),
		groupH:  handler.NewGroupHandler(groupStore, hub, logger.With("component", "group")),
		eventH:  handler.NewEventHandler(eventStore, docs, hub, logger.With("component", "event")),
		reportH: handler.NewReportHandler(scanner, logger.With("component", "report")),
		issuer:  issuer,
		backup:  backupMgr,
		logger:  logger,
	}
}

// Hub returns the websocket hub for out-of-band broadcasts (backup status).
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// watchFunc bridges client watch requests to the live subscription layer.
// Groups are watchable by their own tenant only; events by anyone holding a
// role on them.
func (s *Server) watchFunc() ws.WatchFunc {
	return func(ctx context.Context, principalID string, req ws.WatchRequest, send func([]byte)) (func(), error) {
		switch req.Action {
		case ws.ActionWatchGroup:
			if req.TenantID != principalID {
				return nil, fmt.Errorf("watch group: %w", apperr.ErrForbidden)
			}
			return s.watcher.WatchGroup(req.TenantID, req.GroupID, func(g *model.Group) {
				if g == nil {
					send(snapshotPayload("group", "deleted", req.GroupID, nil))
					return
				}
				send(snapshotPayload("group", "snapshot", req.GroupID, g))
			})
		case ws.ActionWatchEvent:
			if authz.GetRole(ctx, s.docs, principalID, req.TenantID, req.GroupID, req.EventID) == authz.RoleNone {
				return nil, fmt.Errorf("watch event: %w", apperr.ErrForbidden)
			}
			return s.watcher.WatchEvent(req.TenantID, req.GroupID, req.EventID, func(e *model.Event) {
				if e == nil {
					send(snapshotPayload("event", "deleted", req.EventID, nil))
					return
				}
				send(snapshotPayload("event", "snapshot", req.EventID, e))
			})
		}
		return nil, fmt.Errorf("unknown watch action %q", req.Action)
	}
}

func snapshotPayload(entity, action, id string, v any) []byte {
	var extra map[string]any
	if v != nil {
		extra = map[string]any{"data": v}
	}
	data, err := json.Marshal(ws.NewMessage(entity, action, id, extra))
	if err != nil {
		return nil
	}
	return data
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.issuer)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Group routes operate on the caller's own tenant
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("GET /api/groups/{groupID}", s.groupH.Get)
	mux.HandleFunc("PATCH /api/groups/{groupID}", s.groupH.Rename)
	mux.HandleFunc("DELETE /api/groups/{groupID}", s.groupH.Delete)
	mux.HandleFunc("POST /api/groups/{groupID}/participants", s.groupH.AddParticipant)
	mux.HandleFunc("DELETE /api/groups/{groupID}/participants/{participantID}", s.groupH.DeleteParticipant)
	mux.HandleFunc("POST /api/groups/{groupID}/reconcile", s.groupH.Reconcile)

	// Event creation happens in the owner's tenant
	mux.HandleFunc("POST /api/groups/{groupID}/events", s.eventH.Create)

	// Event routes carry the owning tenant so guests can address them
	mux.HandleFunc("GET /api/tenants/{tenantID}/groups/{groupID}/events", s.eventH.List)
	mux.HandleFunc("GET /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}", s.eventH.Get)
	mux.HandleFunc("PATCH /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}", s.eventH.Delete)
	mux.HandleFunc("POST /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/complete", s.eventH.Complete)

	mux.HandleFunc("POST /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/guests", s.eventH.AddGuest)
	mux.HandleFunc("DELETE /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/guests/{userID}", s.eventH.RemoveGuest)

	mux.HandleFunc("POST /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/participants", s.eventH.AddParticipant)
	mux.HandleFunc("PUT /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/participants/{participantID}/stars", s.eventH.UpdateStars)
	mux.HandleFunc("PATCH /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/participants/{participantID}", s.eventH.UpdateParticipant)
	mux.HandleFunc("DELETE /api/tenants/{tenantID}/groups/{groupID}/events/{eventID}/participants/{participantID}", s.eventH.RemoveParticipant)

	// Reporting
	mux.HandleFunc("GET /api/reports/usage", s.reportH.Usage)

	// Backup
	mux.HandleFunc("GET /api/backup/status", s.backupStatusHandler)
	mux.HandleFunc("POST /api/backup/run", s.backupRunHandler)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.watchFunc(), s.logger.With("component", "websocket")))
}

func (s *Server) backupStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.backup.Status())
}

func (s *Server) backupRunHandler(w http.ResponseWriter, r *http.Request) {
	key, err := s.backup.RunNow(r.Context())
	if err != nil {
		s.logger.Error("manual backup", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"key": key})
}
