package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FallbackStore is the offline/demo-mode backend: a single-device store that
// persists each collection as one serialized array under a device-local key
// (`groups`, `events_{groupId}`). Every access round-trips through
// serialize/deserialize. There is no transactional isolation — concurrent
// writers on the same device race last-write-wins on the whole blob, which is
// acceptable only because fallback mode is single-principal, single-device.
type FallbackStore struct {
	mu  sync.Mutex
	dir string
}

// OpenFallback opens (creating if needed) a fallback store rooted at dir.
func OpenFallback(dir string) (*FallbackStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	return &FallbackStore{dir: dir}, nil
}

func (s *FallbackStore) Close() error { return nil }

func (s *FallbackStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fallbackTxn{s: s}).Get(path)
}

func (s *FallbackStore) Set(ctx context.Context, path string, v any, merge bool) error {
	return s.RunTransaction(ctx, func(tx Txn) error {
		if merge {
			return setMerged(tx, path, v)
		}
		return tx.Set(path, v)
	})
}

func (s *FallbackStore) Delete(ctx context.Context, path string) error {
	return s.RunTransaction(ctx, func(tx Txn) error {
		return tx.Delete(path)
	})
}

// RunTransaction runs fn under the store mutex. No snapshot isolation and no
// conflict retry: the body runs exactly once.
func (s *FallbackStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&fallbackTxn{s: s})
}

// Subscribe performs exactly one synchronous read and invokes fn once with
// the current value (nil when absent). It never fires again.
func (s *FallbackStore) Subscribe(path string, fn func(data json.RawMessage)) (func(), error) {
	data, err := s.Get(context.Background(), path)
	if err != nil {
		data = nil
	}
	fn(data)
	return func() {}, nil
}

// ListKind always reports ErrScanUnsupported: a single-device blob store has
// no cross-tenant index. Callers enumerate via ListChildren instead.
func (s *FallbackStore) ListKind(ctx context.Context, kind string) ([]Document, error) {
	return nil, ErrScanUnsupported
}

func (s *FallbackStore) ListChildren(ctx context.Context, parentPath, kind string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samplePath := kind + "/x"
	if parentPath != "" {
		samplePath = parentPath + "/" + kind + "/x"
	}
	key, err := blobKey(samplePath)
	if err != nil {
		return nil, err
	}

	entries, err := s.load(key)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		id, err := entryID(e)
		if err != nil {
			return nil, err
		}
		p := kind + "/" + id
		if parentPath != "" {
			p = parentPath + "/" + kind + "/" + id
		}
		docs = append(docs, Document{Path: p, Data: e})
	}
	return docs, nil
}

// blobKey maps a document path onto its device-local storage key.
func blobKey(path string) (string, error) {
	segs := SplitPath(path)
	switch {
	case len(segs) == 2 && segs[0] == KindTenant:
		return "tenant", nil
	case len(segs) == 2 && segs[0] == KindCode:
		return "codes", nil
	case len(segs) == 4 && segs[2] == KindGroup:
		return "groups", nil
	case len(segs) == 6 && segs[4] == KindEvent:
		return "events_" + segs[3], nil
	}
	return "", fmt.Errorf("unsupported fallback path %q", path)
}

func entryID(data json.RawMessage) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("decode entry id: %w", err)
	}
	return probe.ID, nil
}

func (s *FallbackStore) load(key string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", key, err)
	}
	return entries, nil
}

func (s *FallbackStore) save(key string, entries []json.RawMessage) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode blob %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0600); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

type fallbackTxn struct {
	s *FallbackStore
}

func (t *fallbackTxn) Get(path string) (json.RawMessage, error) {
	key, err := blobKey(path)
	if err != nil {
		return nil, err
	}
	entries, err := t.s.load(key)
	if err != nil {
		return nil, err
	}

	id := PathID(path)
	for _, e := range entries {
		eid, err := entryID(e)
		if err != nil {
			return nil, err
		}
		if eid == id {
			return e, nil
		}
	}
	return nil, notFound(path)
}

func (t *fallbackTxn) Set(path string, v any) error {
	key, err := blobKey(path)
	if err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	entries, err := t.s.load(key)
	if err != nil {
		return err
	}

	id := PathID(path)
	replaced := false
	for i, e := range entries {
		eid, err := entryID(e)
		if err != nil {
			return err
		}
		if eid == id {
			entries[i] = data
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, data)
	}
	return t.s.save(key, entries)
}

func (t *fallbackTxn) Delete(path string) error {
	key, err := blobKey(path)
	if err != nil {
		return err
	}
	entries, err := t.s.load(key)
	if err != nil {
		return err
	}

	id := PathID(path)
	kept := entries[:0]
	for _, e := range entries {
		eid, err := entryID(e)
		if err != nil {
			return err
		}
		if eid != id {
			kept = append(kept, e)
		}
	}
	return t.s.save(key, kept)
}
