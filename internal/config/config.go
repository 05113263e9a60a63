// Package config loads process configuration from the environment, with a
// .env file picked up in development.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/liorcore/star-journey-sub000/internal/backup"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	LogLevel    string
	DBPath      string
	FallbackDir string
	AuthSecret  string
	Backup      backup.Config
}

// Load reads configuration from environment variables. A missing .env file is
// fine; production relies on the system environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg := Config{
		Port:        getenv("STARJOURNEY_PORT", "8080"),
		LogLevel:    getenv("STARJOURNEY_LOG_LEVEL", "info"),
		DBPath:      os.Getenv("STARJOURNEY_DB_PATH"),
		FallbackDir: getenv("STARJOURNEY_FALLBACK_DIR", "starjourney-local"),
		AuthSecret:  os.Getenv("STARJOURNEY_AUTH_SECRET"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("STARJOURNEY_S3_ENDPOINT"),
				Bucket:    os.Getenv("STARJOURNEY_S3_BUCKET"),
				Region:    getenv("STARJOURNEY_S3_REGION", "auto"),
				AccessKey: os.Getenv("STARJOURNEY_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("STARJOURNEY_S3_SECRET_KEY"),
			},
			Passphrase:    os.Getenv("STARJOURNEY_BACKUP_PASSPHRASE"),
			ScheduleHour:  getenvInt("STARJOURNEY_BACKUP_HOUR", 3),
			RetentionDays: getenvInt("STARJOURNEY_BACKUP_RETENTION_DAYS", 30),
		},
	}
	cfg.Backup.DBPath = cfg.DBPath
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment", "key", key, "value", v)
		return fallback
	}
	return n
}
