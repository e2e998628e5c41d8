// Package config handles loading and validating Samsara configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jkaninda/samsara/internal/domain"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for Samsara.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.samsara/data. Override: SAMSARA_DATA_DIR env var.
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`   // nil = SQLite default (derived from data dir)
	Engine        EngineConfig         `json:"engine" yaml:"engine"`
	Classifier    ClassifierConfig     `json:"classifier" yaml:"classifier"`
	Ledger        LedgerConfig         `json:"ledger" yaml:"ledger"`
	Predictor     PredictorConfig      `json:"predictor" yaml:"predictor"`
	Atonement     AtonementConfig      `json:"atonement" yaml:"atonement"`
	Lifecycle     LifecycleConfig      `json:"lifecycle" yaml:"lifecycle"`
	Sweep         *SweepConfig         `json:"sweep,omitempty" yaml:"sweep,omitempty"`                 // nil = plan expiry sweep disabled
	Bridge        *BridgeConfig        `json:"bridge,omitempty" yaml:"bridge,omitempty"`               // nil = relationship bridge disabled
	Gateway       GatewayConfig        `json:"gateway" yaml:"gateway"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
	Notification  *NotificationConfig  `json:"notification,omitempty" yaml:"notification,omitempty"`   // nil = notifications disabled
}

// StorageConfig configures the persistence backend.
// When nil, defaults to SQLite with the database path derived from the data dir.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`                         // "sqlite" (default), "postgres", or "memory".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`     // SQLite-specific settings.
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"` // PostgreSQL-specific settings.
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: derived from data dir.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // "wal" (default), "delete", "truncate", etc.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"`                                 // Override: SAMSARA_DB_DSN env var.
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 25
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 5
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// EngineConfig tunes the event pipeline.
type EngineConfig struct {
	MaxRetries     int                `json:"max_retries" yaml:"max_retries"`   // Conflict retry budget per event. Default: 3.
	DefaultRole    string             `json:"default_role" yaml:"default_role"` // Role assigned to unseen identities. Default: "seeker".
	RoleThresholds map[string]float64 `json:"role_thresholds,omitempty" yaml:"role_thresholds,omitempty"` // Role → minimum karma. Empty = built-in ladder.
}

// Retries returns the conflict retry budget with a default of 3.
func (e *EngineConfig) Retries() int {
	if e != nil && e.MaxRetries > 0 {
		return e.MaxRetries
	}
	return 3
}

// Role returns the default role with a default of "seeker".
func (e *EngineConfig) Role() string {
	if e != nil && e.DefaultRole != "" {
		return e.DefaultRole
	}
	return "seeker"
}

// Thresholds returns the role progression ladder sorted ascending by
// minimum karma, falling back to the built-in ladder when unset.
func (e *EngineConfig) Thresholds() []domain.RoleThreshold {
	if e == nil || len(e.RoleThresholds) == 0 {
		return domain.DefaultRoleThresholds()
	}
	out := make([]domain.RoleThreshold, 0, len(e.RoleThresholds))
	for role, min := range e.RoleThresholds {
		out = append(out, domain.RoleThreshold{Role: domain.Role(role), MinKarma: min})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinKarma < out[j].MinKarma })
	return out
}

// ClassifierConfig configures action resolution.
type ClassifierConfig struct {
	CatalogPath        string `json:"catalog_path,omitempty" yaml:"catalog_path,omitempty"`   // YAML catalog file. Empty = built-in catalog.
	RecencyWindowHours int    `json:"recency_window_hours" yaml:"recency_window_hours"`       // Escalation lookback. Default: 72.
}

// RecencyWindow returns the escalation lookback with a default of 72h.
func (c *ClassifierConfig) RecencyWindow() time.Duration {
	if c != nil && c.RecencyWindowHours > 0 {
		return time.Duration(c.RecencyWindowHours) * time.Hour
	}
	return 72 * time.Hour
}

// LedgerConfig configures balance decay and merit aggregation.
type LedgerConfig struct {
	DecayUnitHours    int     `json:"decay_unit_hours" yaml:"decay_unit_hours"`         // Elapsed-time unit for decay. Default: 24.
	CurrentLifeWeight float64 `json:"current_life_weight" yaml:"current_life_weight"`   // This life's share of the weighted score. Default: 0.7.
}

// DecayUnit returns the decay time unit with a default of 24h.
func (l *LedgerConfig) DecayUnit() time.Duration {
	if l != nil && l.DecayUnitHours > 0 {
		return time.Duration(l.DecayUnitHours) * time.Hour
	}
	return 24 * time.Hour
}

// LifeWeight returns this life's share of the weighted score with a
// default of 0.7.
func (l *LedgerConfig) LifeWeight() float64 {
	if l != nil && l.CurrentLifeWeight > 0 {
		return l.CurrentLifeWeight
	}
	return 0.7
}

// PredictorConfig tunes the role transition learner.
type PredictorConfig struct {
	Alpha             float64 `json:"alpha" yaml:"alpha"`                             // Learning rate. Default: 0.1.
	Gamma             float64 `json:"gamma" yaml:"gamma"`                             // Discount factor. Default: 0.9.
	Epsilon           float64 `json:"epsilon" yaml:"epsilon"`                         // Exploration probability. Default: 0.1.
	BehavioralBias    float64 `json:"behavioral_bias" yaml:"behavioral_bias"`         // Reward adjustment magnitude. Default: 0.
	LowVisitThreshold int     `json:"low_visit_threshold" yaml:"low_visit_threshold"` // Visits below this count as under-explored. Default: 3.
}

// AtonementConfig configures remedy plan issuance and redemption.
type AtonementConfig struct {
	IncrementalRedemption bool `json:"incremental_redemption" yaml:"incremental_redemption"` // Redeem per proof instead of on completion only.
}

// LifecycleConfig configures death, destination banding, and rebirth.
type LifecycleConfig struct {
	DeathThreshold float64 `json:"death_threshold" yaml:"death_threshold"` // Depletion counter at or below this dies. Default: -100.
	SwargaMin      float64 `json:"swarga_min" yaml:"swarga_min"`           // Lowest net karma admitted to Swarga. Default: 108.
	NarakaMax      float64 `json:"naraka_max" yaml:"naraka_max"`           // Net karma below this descends to Naraka. Default: 0.
}

// SweepConfig configures the periodic plan expiry sweep.
// When nil, overdue plans only expire lazily on access.
type SweepConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Schedule  string `json:"schedule" yaml:"schedule"`     // Five-field cron expression. Default: "*/10 * * * *".
	BatchSize int    `json:"batch_size" yaml:"batch_size"` // Plans per sweep pass. Default: 200.
}

// BridgeConfig configures influence pushes to the relationship graph service.
// When nil or the endpoint is empty, pushes are disabled.
type BridgeConfig struct {
	Endpoint       string  `json:"endpoint" yaml:"endpoint"` // Override: SAMSARA_BRIDGE_ENDPOINT env var.
	Bias           float64 `json:"bias" yaml:"bias"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"` // Default: 5.
}

// Timeout returns the push timeout with a default of 5s.
func (b *BridgeConfig) Timeout() time.Duration {
	if b != nil && b.TimeoutSeconds > 0 {
		return time.Duration(b.TimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}

// GatewayConfig defines which gateways are enabled and their settings.
// Nil pointers mean the gateway is not configured.
type GatewayConfig struct {
	HTTP      *HTTPGatewayConfig      `json:"http,omitempty" yaml:"http,omitempty"`
	WebSocket *WebSocketGatewayConfig `json:"websocket,omitempty" yaml:"websocket,omitempty"` // Event stream for subscribers.
}

// HTTPGatewayConfig configures the HTTP API gateway.
type HTTPGatewayConfig struct {
	Enabled             bool            `json:"enabled" yaml:"enabled"`
	ListenAddr          string          `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080".
	APIKey              string          `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Override: SAMSARA_API_KEY env var. Empty = no auth.
	MaxRequestSizeBytes int64           `json:"max_request_size_bytes" yaml:"max_request_size_bytes"` // Default: 1 MB.
	RateLimit           RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// Addr returns the listen address with a default of ":8080".
func (h *HTTPGatewayConfig) Addr() string {
	if h != nil && h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8080"
}

// MaxRequestSize returns the body size cap with a default of 1 MB.
func (h *HTTPGatewayConfig) MaxRequestSize() int64 {
	if h != nil && h.MaxRequestSizeBytes > 0 {
		return h.MaxRequestSizeBytes
	}
	return 1 << 20
}

// WebSocketGatewayConfig configures the WebSocket event stream.
type WebSocketGatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`                         // URL path for the stream endpoint. Default: "/ws/events".
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`   // Shared subscriber token. Empty = open.
}

// WSPath returns the WebSocket path with a default of "/ws/events".
func (w *WebSocketGatewayConfig) WSPath() string {
	if w != nil && w.Path != "" {
		return w.Path
	}
	return "/ws/events"
}

// RateLimitConfig configures per-client rate limiting for a gateway.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int `json:"burst_size" yaml:"burst_size"`
}

// ObservabilityConfig configures metrics, tracing, and health checks.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// MetricsPath returns the exposition path with a default of "/metrics".
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "samsara"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// NotificationConfig configures the notification dispatch subsystem.
// When nil, no notification features are available.
type NotificationConfig struct {
	Enabled bool         `json:"enabled" yaml:"enabled"`
	Slack   *SlackConfig `json:"slack,omitempty" yaml:"slack,omitempty"` // nil = Slack sender disabled.
}

// SlackConfig configures the Slack notification sender.
// Bot token can be set here or via SLACK_BOT_TOKEN env var.
type SlackConfig struct {
	BotToken string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"` // Override: SLACK_BOT_TOKEN env var.
}

// DefaultConfigPath returns the default config file path (~/.samsara/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/samsara.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".samsara", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// Secrets and endpoints can be set in the config file or overridden by
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	// Expand ~ in config path.
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnvOverrides()

	// Resolve DataDir default.
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, ".samsara", "data")
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides layers environment variables over file values.
// Env vars take precedence.
func (c *Config) applyEnvOverrides() {
	if envDD := os.Getenv("SAMSARA_DATA_DIR"); envDD != "" {
		c.DataDir = envDD
	}
	if envDSN := os.Getenv("SAMSARA_DB_DSN"); envDSN != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = envDSN
	}
	if envKey := os.Getenv("SAMSARA_API_KEY"); envKey != "" {
		if c.Gateway.HTTP == nil {
			c.Gateway.HTTP = &HTTPGatewayConfig{Enabled: true}
		}
		c.Gateway.HTTP.APIKey = envKey
	}
	if envEP := os.Getenv("SAMSARA_BRIDGE_ENDPOINT"); envEP != "" {
		if c.Bridge == nil {
			c.Bridge = &BridgeConfig{}
		}
		c.Bridge.Endpoint = envEP
	}
	if envTok := os.Getenv("SLACK_BOT_TOKEN"); envTok != "" {
		if c.Notification == nil {
			c.Notification = &NotificationConfig{Enabled: true}
		}
		if c.Notification.Slack == nil {
			c.Notification.Slack = &SlackConfig{}
		}
		c.Notification.Slack.BotToken = envTok
	}
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".samsara", "data")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the default SQLite database path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.ResolvedDataDir(), "samsara.db")
}

// StorageDriverName returns the effective storage driver name.
func (c *Config) StorageDriverName() string {
	if c.Storage != nil {
		return c.Storage.StorageDriver()
	}
	return "sqlite"
}

func (c *Config) validate() error {
	// Storage driver validation.
	if c.Storage != nil && c.Storage.Driver != "" {
		switch c.Storage.Driver {
		case "sqlite", "postgres", "memory":
			// valid
		default:
			return fmt.Errorf("storage.driver %q is not supported (use sqlite, postgres, or memory)", c.Storage.Driver)
		}
	}
	if c.StorageDriverName() == "postgres" {
		if c.Storage == nil || c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver (set SAMSARA_DB_DSN env var)")
		}
	}
	if err := c.validatePredictor(); err != nil {
		return err
	}
	for role := range c.Engine.RoleThresholds {
		if domain.RoleRank(domain.Role(role)) < 0 {
			return fmt.Errorf("engine.role_thresholds: unknown role %q", role)
		}
	}
	if c.Ledger.CurrentLifeWeight < 0 || c.Ledger.CurrentLifeWeight > 1 {
		return fmt.Errorf("ledger.current_life_weight must be in [0, 1]")
	}
	if c.Lifecycle.DeathThreshold > 0 {
		return fmt.Errorf("lifecycle.death_threshold must not be positive")
	}
	if c.Lifecycle.SwargaMin != 0 && c.Lifecycle.SwargaMin <= c.Lifecycle.NarakaMax {
		return fmt.Errorf("lifecycle.swarga_min must be above lifecycle.naraka_max")
	}
	if c.Bridge != nil && (c.Bridge.Bias < 0 || c.Bridge.Bias > 1) {
		return fmt.Errorf("bridge.bias must be in [0, 1]")
	}
	// Tracing requires an endpoint.
	if c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled {
		t := c.Observability.Tracing
		if t.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		switch t.Protocol {
		case "", "grpc", "http":
			// valid
		default:
			return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", t.Protocol)
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			return fmt.Errorf("observability.tracing.sample_rate must be in [0, 1]")
		}
	}
	return nil
}

// validatePredictor checks the learner hyperparameter ranges.
func (c *Config) validatePredictor() error {
	p := c.Predictor
	if p.Alpha < 0 || p.Alpha > 1 {
		return fmt.Errorf("predictor.alpha must be in [0, 1]")
	}
	if p.Gamma < 0 || p.Gamma > 1 {
		return fmt.Errorf("predictor.gamma must be in [0, 1]")
	}
	if p.Epsilon < 0 || p.Epsilon > 1 {
		return fmt.Errorf("predictor.epsilon must be in [0, 1]")
	}
	if p.LowVisitThreshold < 0 {
		return fmt.Errorf("predictor.low_visit_threshold must not be negative")
	}
	return nil
}
