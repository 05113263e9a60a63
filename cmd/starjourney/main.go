package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liorcore/star-journey-sub000/internal/auth"
	"github.com/liorcore/star-journey-sub000/internal/backup"
	"github.com/liorcore/star-journey-sub000/internal/config"
	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/logging"
	"github.com/liorcore/star-journey-sub000/internal/server"
	ws "github.com/liorcore/star-journey-sub000/internal/websocket"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if cfg.AuthSecret == "" {
		logger.Error("STARJOURNEY_AUTH_SECRET is required")
		os.Exit(1)
	}

	docs, err := docstore.Open(docstore.Config{
		DBPath:      cfg.DBPath,
		FallbackDir: cfg.FallbackDir,
	}, logger)
	if err != nil {
		logger.Error("open document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	issuer := auth.NewIssuer(cfg.AuthSecret)

	// Backups run only against the SQLite backend; fallback mode has no
	// database file to snapshot.
	var backupMgr *backup.Manager
	if sqlite, ok := docs.(*docstore.SQLiteStore); ok {
		backupMgr = backup.NewManager(cfg.Backup, sqlite.DB(), nil, logger.With("component", "backup"))
	} else {
		backupMgr = backup.NewManager(backup.Config{}, nil, nil, logger.With("component", "backup"))
	}

	srv := server.New(docs, issuer, backupMgr, logger)

	hub := srv.Hub()
	backupMgr.SetCallback(func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
