package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/liorcore/star-journey-sub000/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections to WebSocket and runs them as Hub clients. Must sit behind the
// auth middleware so the principal is present in the request context.
func HandleWebSocket(hub *Hub, watch WatchFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principalID, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // token auth already gates access
		})
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, principalID, watch)
		client.Run(r.Context())
	}
}
