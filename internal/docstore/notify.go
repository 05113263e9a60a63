package docstore

import (
	"encoding/json"
	"sync"
)

// notifier fans document changes out to path subscribers. Callbacks run
// synchronously after commit, in registration order.
type notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(json.RawMessage)
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[int]func(json.RawMessage))}
}

func (n *notifier) subscribe(path string, fn func(json.RawMessage)) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	if n.subs[path] == nil {
		n.subs[path] = make(map[int]func(json.RawMessage))
	}
	n.subs[path][id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		if m, ok := n.subs[path]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(n.subs, path)
			}
		}
		n.mu.Unlock()
	}
}

func (n *notifier) publish(path string, data json.RawMessage) {
	n.mu.RLock()
	fns := make([]func(json.RawMessage), 0, len(n.subs[path]))
	for _, fn := range n.subs[path] {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}
}
