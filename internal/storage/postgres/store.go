package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store implements the unified storage interface backed by PostgreSQL.
// The SQLite backend reuses it over its own GORM connection.
type Store struct {
	db     *gorm.DB
	driver string
	closer func() error
	pinger func(context.Context) error
}

// NewStore wraps an open DB as a unified Store.
func NewStore(pgDB *DB) *Store {
	return &Store{
		db:     pgDB.GormDB(),
		driver: "postgres",
		closer: pgDB.Close,
		pinger: pgDB.Ping,
	}
}

// NewStoreWithDB wraps a raw GORM connection. Used by the SQLite backend.
func NewStoreWithDB(db *gorm.DB, driver string, closer func() error, pinger func(context.Context) error) *Store {
	return &Store{db: db, driver: driver, closer: closer, pinger: pinger}
}

func (s *Store) Migrate(_ context.Context) error {
	// Migration runs in Open() via AutoMigrate.
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger(ctx)
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Store) Driver() string {
	return s.driver
}

// notFound maps gorm.ErrRecordNotFound onto the given domain sentinel.
func notFound(err, sentinel error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, sentinel)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
