// Package backup uploads encrypted snapshots of the document database to
// S3-compatible storage on a daily schedule. Snapshots are sealed with a
// passphrase-derived AES-256-GCM key; the passphrase never leaves the process.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const keyPrefix = "backups/"

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	ScheduleHour  int
	RetentionDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager manages encrypted document-database backups.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db     *sql.DB
	client s3Client
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. It stays disabled unless S3 credentials
// and a passphrase are configured.
func NewManager(cfg Config, db *sql.DB, callback StatusCallback, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}

	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// SetCallback replaces the status callback. Call before Start.
func (m *Manager) SetCallback(cb StatusCallback) {
	m.mu.Lock()
	m.callback = cb
	m.mu.Unlock()
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.ScheduleHour || now.Minute() != 0 {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
	if err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow snapshots, encrypts, and uploads the database immediately. Returns
// the object key of the uploaded backup.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("backup not configured")
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	key := fmt.Sprintf("%sdocs-%s.db.enc", keyPrefix, timestamp)

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("starjourney-backup-%s.db", timestamp))
	encFile := dbCopy + ".enc"
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// Checkpoint WAL so the copy is a consistent snapshot
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("wal checkpoint: %w", err)
	}

	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("copy database: %w", err)
	}

	if err := sealFile(dbCopy, encFile, m.cfg.Passphrase); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("encrypt: %w", err)
	}

	encData, err := os.Open(encFile)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("open encrypted file: %w", err)
	}
	defer encData.Close()

	stat, _ := encData.Stat()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	return key, nil
}

// Restore downloads a backup, decrypts and validates it, replaces the
// database file, and exits so the process restarts on the restored copy.
func (m *Manager) Restore(ctx context.Context, key string) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("backup not configured")
	}

	tmpDir := os.TempDir()
	encFile := filepath.Join(tmpDir, "starjourney-restore.db.enc")
	decFile := filepath.Join(tmpDir, "starjourney-restore.db")
	defer os.Remove(encFile)
	defer os.Remove(decFile)

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	outFile, err := os.Create(encFile)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(outFile, result.Body); err != nil {
		outFile.Close()
		return fmt.Errorf("write downloaded file: %w", err)
	}
	outFile.Close()

	if err := openSealedFile(encFile, decFile, m.cfg.Passphrase); err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmpDB, err := sql.Open("sqlite", decFile)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	var integrity string
	if err := tmpDB.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		tmpDB.Close()
		return fmt.Errorf("integrity check: %w", err)
	}
	tmpDB.Close()
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}

	if err := copyFile(decFile, m.cfg.DBPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}

	os.Remove(m.cfg.DBPath + "-wal")
	os.Remove(m.cfg.DBPath + "-shm")

	m.logger.Info("restore complete, exiting for restart")
	os.Exit(0)
	return nil // unreachable
}

// Cleanup deletes uploaded backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil {
		return nil
	}
	if retention <= 0 {
		retention = 30
	}
	before := time.Now().UTC().AddDate(0, 0, -retention)

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(keyPrefix),
	})
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		ts, ok := backupTimestamp(key)
		if !ok || !ts.Before(before) {
			continue
		}
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("delete expired backup", "key", key, "error", err)
		}
	}
	return nil
}

// backupTimestamp parses the upload time embedded in an object key.
func backupTimestamp(key string) (time.Time, bool) {
	name := strings.TrimPrefix(key, keyPrefix)
	name = strings.TrimPrefix(name, "docs-")
	name = strings.TrimSuffix(name, ".db.enc")
	ts, err := time.Parse("2006-01-02T150405Z", name)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
