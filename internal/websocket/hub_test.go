package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	c := NewClient(hub, nil, "user-1", nil)

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("count = %d, want 0", hub.ClientCount())
	}

	// Unregistering twice must not panic (channel already closed).
	hub.Unregister(c)
}

func TestBroadcastAll(t *testing.T) {
	hub := newTestHub()
	a := NewClient(hub, nil, "user-1", nil)
	b := NewClient(hub, nil, "user-2", nil)
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast(NewMessage("group", "updated", "g1", nil))

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.Type != "group_updated" || msg.ID != "g1" {
				t.Errorf("msg = %+v", msg)
			}
		default:
			t.Errorf("client %q received nothing", c.principalID)
		}
	}
}

func TestBroadcastScopedToRecipients(t *testing.T) {
	hub := newTestHub()
	owner := NewClient(hub, nil, "owner", nil)
	guest := NewClient(hub, nil, "guest", nil)
	stranger := NewClient(hub, nil, "stranger", nil)
	hub.Register(owner)
	hub.Register(guest)
	hub.Register(stranger)

	hub.Broadcast(NewMessage("event", "updated", "e1", nil), "owner", "guest")

	for _, c := range []*Client{owner, guest} {
		select {
		case <-c.send:
		default:
			t.Errorf("recipient %q received nothing", c.principalID)
		}
	}
	select {
	case <-stranger.send:
		t.Error("stranger should not receive a scoped message")
	default:
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	c := NewClient(hub, nil, "user-1", nil)
	hub.Register(c)

	// Overfill the buffer; extra messages are dropped, not blocking.
	for i := 0; i < sendBufferSize+5; i++ {
		hub.Broadcast(NewMessage("group", "updated", "g1", nil))
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
}
