package live

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
)

func setupWatcher(t *testing.T) (*Watcher, docstore.Store) {
	t.Helper()
	docs, err := docstore.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWatcher(docs, logger), docs
}

func TestWatchGroupChanges(t *testing.T) {
	w, docs := setupWatcher(t)
	ctx := context.Background()

	var got []*model.Group
	unsub, err := w.WatchGroup("t1", "g1", func(g *model.Group) {
		got = append(got, g)
	})
	if err != nil {
		t.Fatalf("watch group: %v", err)
	}
	defer unsub()

	docs.Set(ctx, docstore.GroupPath("t1", "g1"), model.Group{ID: "g1", Name: "Smith Family"}, false)
	docs.Delete(ctx, docstore.GroupPath("t1", "g1"))

	if len(got) != 2 {
		t.Fatalf("updates = %d, want 2", len(got))
	}
	if got[0] == nil || got[0].Name != "Smith Family" {
		t.Errorf("first update = %+v, want decoded group", got[0])
	}
	if got[1] != nil {
		t.Errorf("delete update = %+v, want nil", got[1])
	}
}

func TestWatchGroupNormalizesDefaults(t *testing.T) {
	w, docs := setupWatcher(t)
	ctx := context.Background()

	var got *model.Group
	unsub, _ := w.WatchGroup("t1", "g1", func(g *model.Group) { got = g })
	defer unsub()

	// Raw document with a participant missing icon and achievement log.
	docs.Set(ctx, docstore.GroupPath("t1", "g1"), map[string]any{
		"id":           "g1",
		"name":         "Smith Family",
		"participants": []map[string]any{{"id": "p1", "name": "Alex"}},
	}, false)

	if got == nil || len(got.Participants) != 1 {
		t.Fatalf("got = %+v, want group with one participant", got)
	}
	p := got.Participants[0]
	if p.Icon != model.DefaultIcon {
		t.Errorf("icon = %q, want default %q", p.Icon, model.DefaultIcon)
	}
	if p.CompletedEvents == nil {
		t.Error("completed events should default to empty slice")
	}
}

func TestWatchEventIndependentHandles(t *testing.T) {
	w, docs := setupWatcher(t)
	ctx := context.Background()

	var a, b int
	unsubA, _ := w.WatchEvent("t1", "g1", "e1", func(*model.Event) { a++ })
	unsubB, _ := w.WatchEvent("t1", "g1", "e1", func(*model.Event) { b++ })
	defer unsubB()

	docs.Set(ctx, docstore.EventPath("t1", "g1", "e1"), model.Event{ID: "e1", Name: "Trip"}, false)
	unsubA()
	docs.Set(ctx, docstore.EventPath("t1", "g1", "e1"), model.Event{ID: "e1", Name: "Trip!"}, false)

	if a != 1 {
		t.Errorf("first handle updates = %d, want 1", a)
	}
	if b != 2 {
		t.Errorf("second handle updates = %d, want 2", b)
	}
}

func TestWatchFallbackOneShot(t *testing.T) {
	docs, err := docstore.OpenFallback(t.TempDir())
	if err != nil {
		t.Fatalf("open fallback: %v", err)
	}
	ctx := context.Background()
	docs.Set(ctx, docstore.GroupPath("t1", "g1"), model.Group{ID: "g1", Name: "Smith Family"}, false)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWatcher(docs, logger)

	var got []*model.Group
	unsub, err := w.WatchGroup("t1", "g1", func(g *model.Group) { got = append(got, g) })
	if err != nil {
		t.Fatalf("watch group: %v", err)
	}
	defer unsub()

	if len(got) != 1 || got[0] == nil || got[0].Name != "Smith Family" {
		t.Fatalf("got = %+v, want one snapshot invocation", got)
	}

	docs.Set(ctx, docstore.GroupPath("t1", "g1"), model.Group{ID: "g1", Name: "Jones Family"}, false)
	if len(got) != 1 {
		t.Errorf("updates after write = %d, want 1 (one-shot in fallback mode)", len(got))
	}
}
