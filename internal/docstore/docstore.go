// Package docstore provides typed read/write/transaction primitives against a
// hierarchical document backend addressed by path segments. Two backends exist:
// a SQLite-backed store with transactional isolation and change notification,
// and a single-device fallback that persists whole collections as serialized
// blobs. Selection between them happens once at startup; callers above the
// repository never see the difference.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
)

// Document kinds, matching the second-to-last path segment.
const (
	KindTenant = "tenants"
	KindGroup  = "groups"
	KindEvent  = "events"
	KindCode   = "codes"
)

// ErrScanUnsupported is returned by ListKind when the backend cannot serve a
// wildcard scan. The reporting scanner falls back to per-tenant enumeration.
var ErrScanUnsupported = errors.New("wildcard scan unsupported")

// Document pairs a path with its raw JSON payload.
type Document struct {
	Path string
	Data json.RawMessage
}

// Txn is the view of the store inside a transaction. The transaction body may
// re-run on write conflict, so it must be free of external side effects.
type Txn interface {
	Get(path string) (json.RawMessage, error)
	Set(path string, v any) error
	Delete(path string) error
}

// Store is the document store handle. Get returns apperr.ErrNotFound for
// absent documents. Subscribe invokes fn with the new document payload on
// every change, or nil when the document is deleted; the returned func
// cancels the subscription.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, v any, merge bool) error
	Delete(ctx context.Context, path string) error
	RunTransaction(ctx context.Context, fn func(tx Txn) error) error
	Subscribe(path string, fn func(data json.RawMessage)) (func(), error)

	// ListKind fetches every document of a kind across all tenants in one
	// pass, or ErrScanUnsupported.
	ListKind(ctx context.Context, kind string) ([]Document, error)
	// ListChildren enumerates documents of a kind directly under parentPath.
	// An empty parentPath lists top-level collections (tenants, codes).
	ListChildren(ctx context.Context, parentPath, kind string) ([]Document, error)

	Close() error
}

// Config selects the backend. A non-empty DBPath means the remote-equivalent
// SQLite backend; otherwise the store falls back to single-device blob
// storage under FallbackDir.
type Config struct {
	DBPath      string
	FallbackDir string
}

// Open selects and opens the backend once, at startup. When the configured
// backend cannot be opened, Open degrades to the local fallback with a
// warning rather than failing — the unavailability never surfaces
// mid-operation.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if cfg.DBPath != "" {
		store, err := OpenSQLite(cfg.DBPath)
		if err == nil {
			return store, nil
		}
		if !errors.Is(err, apperr.ErrBackendUnavailable) {
			return nil, err
		}
		logger.Warn("document backend unavailable, using local fallback", "error", err)
	}
	return OpenFallback(cfg.FallbackDir)
}

func notFound(path string) error {
	return fmt.Errorf("get %s: %w", path, apperr.ErrNotFound)
}

// TenantPath returns the document path for a tenant record.
func TenantPath(principalID string) string {
	return "tenants/" + principalID
}

// GroupPath returns the document path for a group within a tenant.
func GroupPath(tenantID, groupID string) string {
	return fmt.Sprintf("tenants/%s/groups/%s", tenantID, groupID)
}

// EventPath returns the document path for an event within a group.
func EventPath(tenantID, groupID, eventID string) string {
	return fmt.Sprintf("tenants/%s/groups/%s/events/%s", tenantID, groupID, eventID)
}

// CodePath returns the reservation document path for a join code.
func CodePath(code string) string {
	return "codes/" + code
}

// SplitPath breaks a document path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, "/")
}

// PathKind returns the collection kind a path belongs to, or an error for a
// malformed path (paths always have an even number of segments).
func PathKind(path string) (string, error) {
	segs := SplitPath(path)
	if len(segs) == 0 || len(segs)%2 != 0 {
		return "", fmt.Errorf("malformed document path %q", path)
	}
	return segs[len(segs)-2], nil
}

// PathParent returns the document path of the parent, or "" for top-level
// documents.
func PathParent(path string) string {
	segs := SplitPath(path)
	if len(segs) <= 2 {
		return ""
	}
	return strings.Join(segs[:len(segs)-2], "/")
}

// PathID returns the final path segment, the document id.
func PathID(path string) string {
	segs := SplitPath(path)
	return segs[len(segs)-1]
}
