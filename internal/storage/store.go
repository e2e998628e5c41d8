// Package storage defines the unified Store interface over all persistence.
// Three backends implement it: memory (tests, ephemeral runs), SQLite
// (default, zero-config), and PostgreSQL (production).
package storage

import (
	"context"

	"github.com/jkaninda/samsara/internal/debt"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/notification"
)

// Store is the unified persistence interface. The engine surface carries
// profiles, action records, plans, the Q-table, lifecycle events, and
// appeals; notification channels and relationship debts ride alongside.
type Store interface {
	engine.Store
	notification.ChannelStore
	debt.Store

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Driver returns the backend name ("memory", "sqlite", "postgres").
	Driver() string
}

// Config selects and configures the storage backend.
type Config struct {
	Driver   string         `yaml:"driver" json:"driver"` // "sqlite" (default), "postgres", or "memory".
	SQLite   SQLiteConfig   `yaml:"sqlite" json:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path        string `yaml:"path" json:"path,omitempty"`
	JournalMode string `yaml:"journal_mode" json:"journal_mode"` // "wal" (default).
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN              string `yaml:"dsn" json:"dsn"`
	MaxOpenConns     int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns     int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetimeS int    `yaml:"conn_max_lifetime_s" json:"conn_max_lifetime_s"`
}

const (
	// DefaultDriver is used when none is configured.
	DefaultDriver = DriverSQLite

	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)
