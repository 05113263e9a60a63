// Package live delivers push-based change notification for a single group or
// event document. Each watch gets its own independent handle; nothing is
// cached between watches. In fallback mode the underlying store fires exactly
// once with a snapshot, which callers see as a single handler invocation.
package live

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
)

// Watcher wraps the document store's subscription primitive with decoding.
type Watcher struct {
	docs   docstore.Store
	logger *slog.Logger
}

func NewWatcher(docs docstore.Store, logger *slog.Logger) *Watcher {
	return &Watcher{docs: docs, logger: logger.With("component", "live")}
}

// WatchGroup invokes fn with the decoded group on every change, or nil when
// the group is deleted. The returned func cancels the watch.
func (w *Watcher) WatchGroup(tenantID, groupID string, fn func(*model.Group)) (func(), error) {
	path := docstore.GroupPath(tenantID, groupID)
	unsub, err := w.docs.Subscribe(path, func(data json.RawMessage) {
		if data == nil {
			fn(nil)
			return
		}
		var g model.Group
		if err := json.Unmarshal(data, &g); err != nil {
			w.logger.Error("decode group update", "path", path, "error", err)
			return
		}
		g.Normalize()
		fn(&g)
	})
	if err != nil {
		return nil, fmt.Errorf("watch group %s: %w", path, err)
	}
	return unsub, nil
}

// WatchEvent invokes fn with the decoded event on every change, or nil when
// the event is deleted.
func (w *Watcher) WatchEvent(tenantID, groupID, eventID string, fn func(*model.Event)) (func(), error) {
	path := docstore.EventPath(tenantID, groupID, eventID)
	unsub, err := w.docs.Subscribe(path, func(data json.RawMessage) {
		if data == nil {
			fn(nil)
			return
		}
		var e model.Event
		if err := json.Unmarshal(data, &e); err != nil {
			w.logger.Error("decode event update", "path", path, "error", err)
			return
		}
		e.Normalize()
		fn(&e)
	})
	if err != nil {
		return nil, fmt.Errorf("watch event %s: %w", path, err)
	}
	return unsub, nil
}
