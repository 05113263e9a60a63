package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/database"
)

const txRetryBudget = 5

// SQLiteStore is the networked-backend stand-in: a hierarchical document
// store over a single SQLite database. Transactions are retried on write
// conflict up to an internal budget, then surfaced as apperr.ErrAborted.
type SQLiteStore struct {
	db       *sql.DB
	notifier *notifier

	// wildcardScans mirrors the backend capability switch: when false,
	// ListKind reports ErrScanUnsupported and reporting must enumerate.
	wildcardScans bool
}

// OpenSQLite opens (and migrates) the document database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	return &SQLiteStore{db: db, notifier: newNotifier(), wildcardScans: true}, nil
}

// SetWildcardScans toggles the wildcard-scan capability. Used to exercise the
// reporting fallback path.
func (s *SQLiteStore) SetWildcardScans(enabled bool) {
	s.wildcardScans = enabled
}

// DB exposes the underlying handle for maintenance tasks (WAL checkpointing
// before backup).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}

func (s *SQLiteStore) Set(ctx context.Context, path string, v any, merge bool) error {
	return s.RunTransaction(ctx, func(tx Txn) error {
		if merge {
			return setMerged(tx, path, v)
		}
		return tx.Set(path, v)
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	return s.RunTransaction(ctx, func(tx Txn) error {
		return tx.Delete(path)
	})
}

// RunTransaction executes fn against a transactional view of the store. The
// body may re-run, so it must not carry external side effects. Subscribers
// are notified after commit only.
func (s *SQLiteStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	var changes []change

	backoff := retry.WithMaxRetries(txRetryBudget, retry.NewExponential(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return retryIfBusy(fmt.Errorf("begin tx: %w", err))
		}

		t := &sqliteTxn{tx: sqlTx}
		if err := fn(t); err != nil {
			sqlTx.Rollback()
			return retryIfBusy(err)
		}

		if err := sqlTx.Commit(); err != nil {
			return retryIfBusy(fmt.Errorf("commit: %w", err))
		}

		changes = t.changes
		return nil
	})
	if err != nil {
		if isBusy(err) {
			return fmt.Errorf("%w: %v", apperr.ErrAborted, err)
		}
		return err
	}

	for _, c := range changes {
		s.notifier.publish(c.path, c.data)
	}
	return nil
}

// Subscribe registers fn for every committed change to path. Each caller gets
// an independent handle and must call its own unsubscribe.
func (s *SQLiteStore) Subscribe(path string, fn func(data json.RawMessage)) (func(), error) {
	return s.notifier.subscribe(path, fn), nil
}

func (s *SQLiteStore) ListKind(ctx context.Context, kind string) ([]Document, error) {
	if !s.wildcardScans {
		return nil, ErrScanUnsupported
	}
	return s.queryDocs(ctx, `SELECT path, data FROM documents WHERE kind = ? ORDER BY path ASC`, kind)
}

func (s *SQLiteStore) ListChildren(ctx context.Context, parentPath, kind string) ([]Document, error) {
	return s.queryDocs(ctx,
		`SELECT path, data FROM documents WHERE parent = ? AND kind = ? ORDER BY path ASC`,
		parentPath, kind,
	)
}

func (s *SQLiteStore) queryDocs(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var data []byte
		if err := rows.Scan(&d.Path, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Data = json.RawMessage(data)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type change struct {
	path string
	data json.RawMessage // nil means deleted
}

type sqliteTxn struct {
	tx      *sql.Tx
	changes []change
}

func (t *sqliteTxn) Get(path string) (json.RawMessage, error) {
	var data []byte
	err := t.tx.QueryRow(`SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}

func (t *sqliteTxn) Set(path string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	kind, err := PathKind(path)
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(
		`INSERT INTO documents (path, kind, parent, data, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		path, kind, PathParent(path), []byte(data),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	t.changes = append(t.changes, change{path: path, data: data})
	return nil
}

func (t *sqliteTxn) Delete(path string) error {
	if _, err := t.tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	t.changes = append(t.changes, change{path: path, data: nil})
	return nil
}

// setMerged overlays v's top-level fields onto the existing document, or
// writes v outright when the document is absent.
func setMerged(tx Txn, path string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	existing, err := tx.Get(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return tx.Set(path, data)
		}
		return err
	}

	var base, overlay map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return fmt.Errorf("decode existing %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("decode overlay %s: %w", path, err)
	}
	for k, val := range overlay {
		base[k] = val
	}
	return tx.Set(path, base)
}

func encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// isBusy matches SQLite lock contention, the only conflict class worth
// retrying. Everything else propagates as-is.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func retryIfBusy(err error) error {
	if isBusy(err) {
		return retry.RetryableError(err)
	}
	return err
}
