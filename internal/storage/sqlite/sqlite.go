// Package sqlite implements the unified Store interface using SQLite via
// GORM, through the glebarez driver (pure Go, no CGO).
//
// The schema and repositories are shared with the PostgreSQL backend;
// this package only owns the connection. Differences from PostgreSQL:
//   - WAL mode enabled by default for concurrent reads
//   - jsonb columns are stored as TEXT
//   - no connection pooling (single file, WAL handles concurrency)
package sqlite

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	pgstore "github.com/jkaninda/samsara/internal/storage/postgres"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string // Database file path.
	JournalMode string // WAL mode by default.
}

// Open creates a SQLite-backed Store.
func Open(cfg Config, slogger *slog.Logger) (*pgstore.Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "wal"
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path, journalMode)

	gormLogger := logger.New(
		slogWriter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", cfg.Path, err)
	}

	// SQLite tolerates exactly one writer; a larger pool just queues on
	// the file lock.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := pgstore.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrating: %w", err)
	}

	slogger.Info("sqlite opened",
		slog.String("path", cfg.Path),
		slog.String("journal_mode", journalMode),
	)

	return pgstore.NewStoreWithDB(db, "sqlite", sqlDB.Close, sqlDB.PingContext), nil
}

// slogWriter adapts *slog.Logger to GORM's logger.Writer interface.
type slogWriter struct {
	logger *slog.Logger
}

func (s slogWriter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}
