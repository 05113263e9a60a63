package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Watch actions accepted from clients.
const (
	ActionWatchGroup = "watch_group"
	ActionWatchEvent = "watch_event"
)

// WatchRequest is a client-initiated subscription to a single document.
type WatchRequest struct {
	Action   string `json:"action"`
	TenantID string `json:"tenant_id"`
	GroupID  string `json:"group_id"`
	EventID  string `json:"event_id"`
}

// WatchFunc starts a document watch on behalf of the principal, delivering
// payloads through send. It returns a cancel func, or an error when the
// principal may not watch the addressed document.
type WatchFunc func(ctx context.Context, principalID string, req WatchRequest, send func([]byte)) (func(), error)

// Client represents a single WebSocket connection, bound to the principal
// that authenticated it.
type Client struct {
	hub         *Hub
	conn        *ws.Conn
	principalID string
	send        chan []byte

	watch   WatchFunc
	watches []func()
}

// NewClient creates a Client tied to the given hub, connection, and principal.
// watch may be nil, in which case watch requests are ignored.
func NewClient(hub *Hub, conn *ws.Conn, principalID string, watch WatchFunc) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		principalID: principalID,
		send:        make(chan []byte, sendBufferSize),
		watch:       watch,
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads incoming messages and dispatches watch requests. It returns
// on error (connection close), which triggers cleanup. Watches must be
// canceled before the hub closes the send channel.
func (c *Client) readPump(ctx context.Context) {
	defer c.cancelWatches()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handleCommand(ctx, data)
	}
}

// handleCommand processes a client message. Only watch requests are
// recognized; anything else is ignored.
func (c *Client) handleCommand(ctx context.Context, data []byte) {
	if c.watch == nil {
		return
	}
	var req WatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	if req.Action != ActionWatchGroup && req.Action != ActionWatchEvent {
		return
	}

	cancel, err := c.watch(ctx, c.principalID, req, c.enqueue)
	if err != nil {
		if refusal, merr := json.Marshal(Message{Type: "error", Action: req.Action}); merr == nil {
			c.enqueue(refusal)
		}
		return
	}
	c.watches = append(c.watches, cancel)
}

// enqueue queues a payload for the write pump, dropping when the buffer is
// full, same as hub broadcasts.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) cancelWatches() {
	for _, cancel := range c.watches {
		cancel()
	}
	c.watches = nil
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel — connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
