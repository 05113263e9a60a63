package websocket

import (
	"context"
	"encoding/json"
	"testing"
)

func TestClientWatchCommand(t *testing.T) {
	hub := newTestHub()

	var gotReq WatchRequest
	canceled := false
	watch := func(ctx context.Context, principalID string, req WatchRequest, send func([]byte)) (func(), error) {
		if principalID != "user-1" {
			t.Errorf("principal = %q, want %q", principalID, "user-1")
		}
		gotReq = req
		send([]byte(`{"type":"group_snapshot"}`))
		return func() { canceled = true }, nil
	}
	c := NewClient(hub, nil, "user-1", watch)

	c.handleCommand(context.Background(), []byte(`{"action":"watch_group","tenant_id":"t1","group_id":"g1"}`))

	if gotReq.Action != ActionWatchGroup || gotReq.TenantID != "t1" || gotReq.GroupID != "g1" {
		t.Errorf("req = %+v", gotReq)
	}
	select {
	case <-c.send:
	default:
		t.Error("watch should deliver the initial payload")
	}

	c.cancelWatches()
	if !canceled {
		t.Error("cancelWatches should cancel the watch")
	}
	if len(c.watches) != 0 {
		t.Errorf("watches after cancel = %d, want 0", len(c.watches))
	}
}

func TestClientWatchRefused(t *testing.T) {
	hub := newTestHub()
	watch := func(ctx context.Context, principalID string, req WatchRequest, send func([]byte)) (func(), error) {
		return nil, context.Canceled
	}
	c := NewClient(hub, nil, "user-1", watch)

	c.handleCommand(context.Background(), []byte(`{"action":"watch_event","tenant_id":"t1","group_id":"g1","event_id":"e1"}`))

	if len(c.watches) != 0 {
		t.Errorf("watches = %d, want 0 after refusal", len(c.watches))
	}
	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != "error" {
			t.Errorf("type = %q, want %q", msg.Type, "error")
		}
	default:
		t.Error("refusal should be reported to the client")
	}
}

func TestClientIgnoresUnknownCommands(t *testing.T) {
	hub := newTestHub()
	invoked := false
	watch := func(ctx context.Context, principalID string, req WatchRequest, send func([]byte)) (func(), error) {
		invoked = true
		return func() {}, nil
	}
	c := NewClient(hub, nil, "user-1", watch)

	c.handleCommand(context.Background(), []byte(`{"action":"ping"}`))
	c.handleCommand(context.Background(), []byte(`not json`))

	if invoked {
		t.Error("unknown commands should not start watches")
	}
	select {
	case <-c.send:
		t.Error("unknown commands should produce no reply")
	default:
	}
}
