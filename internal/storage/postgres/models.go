package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONB is a json.RawMessage that GORM maps to a jsonb column (TEXT on
// SQLite).
type JSONB json.RawMessage

// ProfileModel maps to the "karma_profiles" table. The Version column is
// the optimistic concurrency token; every committed mutation increments it.
type ProfileModel struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Role               string     `gorm:"not null"`
	State              string     `gorm:"not null;default:'alive';index"`
	Balances           JSONB      `gorm:"type:jsonb;not null;default:'{}'"`
	MeritScore         float64    `gorm:"not null;default:0"`
	PenaltyScore       float64    `gorm:"not null;default:0"`
	NetKarma           float64    `gorm:"not null;default:0;index"`
	WeightedKarmaScore float64    `gorm:"not null;default:0"`
	DepletionCounter   float64    `gorm:"not null;default:0"`
	RebirthCount       int        `gorm:"not null;default:0"`
	AncestorID         *uuid.UUID `gorm:"type:uuid"`
	LastDecayedAt      JSONB      `gorm:"type:jsonb;not null;default:'{}'"`
	Version            int64      `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (ProfileModel) TableName() string { return "karma_profiles" }

// ActionRecordModel maps to the "action_records" table.
// Append-only. No UpdatedAt or DeletedAt; the audit trail is immutable
// apart from the appealed flag.
type ActionRecordModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID    string    `gorm:"not null;uniqueIndex"`
	IdentityID   uuid.UUID `gorm:"type:uuid;not null;index:idx_actions_identity_created"`
	Action       string    `gorm:"not null;index:idx_actions_identity_action"`
	Role         string    `gorm:"not null"`
	Intensity    float64   `gorm:"not null;default:1"`
	Category     string    `gorm:"not null"`
	Severity     string    `gorm:"not null;default:''"`
	TokenAmount  float64   `gorm:"not null;default:0"`
	KarmaDelta   float64   `gorm:"not null;default:0"`
	Counterparty string    `gorm:"not null;default:''"`
	Appealed     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"index:idx_actions_identity_created;index:idx_actions_identity_action"`
}

func (ActionRecordModel) TableName() string { return "action_records" }

// AtonementPlanModel maps to the "atonement_plans" table.
type AtonementPlanModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	IdentityID     uuid.UUID `gorm:"type:uuid;not null;index"`
	OriginActionID uuid.UUID `gorm:"type:uuid;not null;index"`
	OriginAction   string    `gorm:"not null"`
	Category       string    `gorm:"not null"`
	Severity       string    `gorm:"not null"`
	Tasks          JSONB     `gorm:"type:jsonb;not null;default:'[]'"`
	Status         string    `gorm:"not null;default:'open';index:idx_plans_status_deadline"`
	CreatedAt      time.Time
	Deadline       time.Time `gorm:"index:idx_plans_status_deadline"`
	ResolvedAt     *time.Time
}

func (AtonementPlanModel) TableName() string { return "atonement_plans" }

// QEntryModel maps to the "q_entries" table: one row per visited
// (identity, role, action) cell of the sparse Q-table.
type QEntryModel struct {
	IdentityID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role       string    `gorm:"primaryKey"`
	Action     string    `gorm:"primaryKey"`
	Value      float64   `gorm:"not null;default:0"`
	VisitCount int       `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}

func (QEntryModel) TableName() string { return "q_entries" }

// LifecycleEventModel maps to the "lifecycle_events" table.
// Append-only. One row per death+rebirth pair.
type LifecycleEventModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	IdentityID        uuid.UUID `gorm:"type:uuid;not null;index"`
	NewIdentityID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Loka              string    `gorm:"not null"`
	NetKarmaAtDeath   float64   `gorm:"not null"`
	CarryoverPositive float64   `gorm:"not null;default:0"`
	CarryoverNegative float64   `gorm:"not null;default:0"`
	RebirthCount      int       `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"index"`
}

func (LifecycleEventModel) TableName() string { return "lifecycle_events" }

// AppealModel maps to the "appeals" table. The unique index on
// ActionRecordID enforces at most one appeal per action.
type AppealModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequestID       string     `gorm:"not null;uniqueIndex"`
	IdentityID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActionRecordID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	Reason          string     `gorm:"type:text;not null"`
	Status          string     `gorm:"not null"`
	RevisedSeverity string     `gorm:"not null;default:''"`
	ReversedDelta   float64    `gorm:"not null;default:0"`
	NewPlanID       *uuid.UUID `gorm:"type:uuid"`
	CreatedAt       time.Time  `gorm:"index"`
}

func (AppealModel) TableName() string { return "appeals" }

// NotificationChannelModel maps to the "notification_channels" table.
type NotificationChannelModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null;uniqueIndex"`
	ChannelType string    `gorm:"not null"`
	Tags        JSONB     `gorm:"type:jsonb;not null;default:'[]'"`
	Config      JSONB     `gorm:"type:jsonb;not null;default:'{}'"`
	Enabled     bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotificationChannelModel) TableName() string { return "notification_channels" }

// DebtModel maps to the "relationship_debts" table. Append-only.
type DebtModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Debtor    uuid.UUID `gorm:"type:uuid;not null;index"`
	Receiver  string    `gorm:"not null;index"`
	Severity  string    `gorm:"not null"`
	Amount    float64   `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (DebtModel) TableName() string { return "relationship_debts" }

// ProcessedRequestModel maps to the "processed_requests" table: the
// idempotency ledger for proof and appeal submissions. Action records carry
// their own unique request id, so only non-action events land here.
type ProcessedRequestModel struct {
	RequestID string    `gorm:"primaryKey"`
	Kind      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (ProcessedRequestModel) TableName() string { return "processed_requests" }
