// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the ordered classification tier for punitive actions.
// It scales both the penalty weight and the atonement requirement.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityMinor  Severity = "minor"
	SeverityMedium Severity = "medium"
	SeverityMajor  Severity = "major"
	SeverityMaha   Severity = "maha"
)

var severityOrder = []Severity{SeverityMinor, SeverityMedium, SeverityMajor, SeverityMaha}

// Rank returns the position of the severity in the tier ladder (0-based).
// SeverityNone ranks below SeverityMinor.
func (s Severity) Rank() int {
	for i, t := range severityOrder {
		if s == t {
			return i
		}
	}
	return -1
}

// Escalate returns the severity one tier above s, capped at SeverityMaha.
func (s Severity) Escalate() Severity {
	r := s.Rank()
	if r < 0 {
		return SeverityMinor
	}
	if r >= len(severityOrder)-1 {
		return SeverityMaha
	}
	return severityOrder[r+1]
}

// Valid reports whether s names a known tier (SeverityNone is not a tier).
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// Severities lists all tiers in ascending order.
func Severities() []Severity {
	out := make([]Severity, len(severityOrder))
	copy(out, severityOrder)
	return out
}

// Loka is the post-death destination band derived from net karma at death.
type Loka string

const (
	LokaSwarga Loka = "swarga"
	LokaMartya Loka = "martya"
	LokaNaraka Loka = "naraka"
)

// Polarity describes which side of the ledger a token category sits on.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// Role is a rung on the ordered spiritual progression ladder.
// Progression is strictly ordered; a single action moves an identity
// at most one rung in either direction.
type Role string

const (
	RoleSeeker      Role = "seeker"
	RoleAspirant    Role = "aspirant"
	RoleHouseholder Role = "householder"
	RoleSage        Role = "sage"
	RoleRishi       Role = "rishi"
)

// RoleLadder lists all roles in ascending order of attainment.
func RoleLadder() []Role {
	return []Role{RoleSeeker, RoleAspirant, RoleHouseholder, RoleSage, RoleRishi}
}

// RoleRank returns the 0-based position of r on the ladder, or -1.
func RoleRank(r Role) int {
	for i, lr := range RoleLadder() {
		if lr == r {
			return i
		}
	}
	return -1
}

// ProfileState is the lifecycle state of an identity.
type ProfileState string

const (
	StateAlive    ProfileState = "alive"
	StateDeceased ProfileState = "deceased"
)

// KarmaProfile is the per-identity score sheet. One exists per identity;
// it is owned exclusively by the engine and mutated only through ledger
// operations under the per-identity serialization discipline.
type KarmaProfile struct {
	ID                 uuid.UUID
	Role               Role
	State              ProfileState
	Balances           map[string]float64 // BalanceKey(category, severity) -> amount. Absent key reads as zero.
	MeritScore         float64
	PenaltyScore       float64
	NetKarma           float64
	WeightedKarmaScore float64
	DepletionCounter   float64 // Signed accumulator. Decreases only via negative actions.
	RebirthCount       int
	AncestorID         *uuid.UUID // Prior identity in the rebirth lineage, if any.
	LastDecayedAt      map[string]time.Time
	Version            int64 // Optimistic concurrency token. Bumped on every committed mutation.
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BalanceKey builds the balances map key for a category, with an optional
// severity sub-key for tiered (negative/debt) categories.
func BalanceKey(category string, severity Severity) string {
	if severity == SeverityNone {
		return category
	}
	return category + "/" + string(severity)
}

// Balance reads a balance, treating an absent key as zero.
func (p *KarmaProfile) Balance(category string, severity Severity) float64 {
	return p.Balances[BalanceKey(category, severity)]
}

// Clone returns a deep copy of the profile. Stores return clones so callers
// never share mutable state with the persistence layer.
func (p *KarmaProfile) Clone() *KarmaProfile {
	cp := *p
	cp.Balances = make(map[string]float64, len(p.Balances))
	for k, v := range p.Balances {
		cp.Balances[k] = v
	}
	cp.LastDecayedAt = make(map[string]time.Time, len(p.LastDecayedAt))
	for k, v := range p.LastDecayedAt {
		cp.LastDecayedAt[k] = v
	}
	if p.AncestorID != nil {
		id := *p.AncestorID
		cp.AncestorID = &id
	}
	return &cp
}

// TokenCategory describes one token bucket: its contribution weight, its
// decay behaviour, and (for tiered categories) the per-severity multipliers.
type TokenCategory struct {
	Name                string
	Polarity            Polarity
	Weight              float64
	DecayRate           float64 // Fractional reduction per elapsed unit (0.01 = 1%/unit).
	SeverityMultipliers map[Severity]float64
}

// Multiplier returns the severity multiplier for tiered categories,
// defaulting to 1 when the category is untiered or the tier is unknown.
func (c *TokenCategory) Multiplier(s Severity) float64 {
	if c.SeverityMultipliers == nil {
		return 1
	}
	if m, ok := c.SeverityMultipliers[s]; ok {
		return m
	}
	return 1
}

// ActionRecord is the append-only audit record of a classified action.
// Immutable once written; the sole source of truth for recomputation.
type ActionRecord struct {
	ID           uuid.UUID
	RequestID    string // Upstream idempotency key. Unique; a repeat is a no-op.
	IdentityID   uuid.UUID
	Action       string
	Role         Role
	Intensity    float64 // 0.0–2.0 scaling factor supplied by the gateway.
	Category     string
	Severity     Severity
	TokenAmount  float64 // Raw amount credited to the balance bucket.
	KarmaDelta   float64 // Signed weighted delta this action contributed to net karma.
	Counterparty string  // Affected party named by a negative action, if any.
	Appealed     bool
	CreatedAt    time.Time
}

// PlanStatus is the lifecycle state of an atonement plan.
type PlanStatus string

const (
	PlanOpen      PlanStatus = "open"
	PlanCompleted PlanStatus = "completed"
	PlanExpired   PlanStatus = "expired"
)

// Mechanism is one of the four remediation types.
type Mechanism string

const (
	MechanismRepetition Mechanism = "repetition"
	MechanismAbstinence Mechanism = "abstinence"
	MechanismDevotional Mechanism = "devotional-act"
	MechanismCharitable Mechanism = "charitable-giving"
)

// Mechanisms lists all remediation types in canonical order.
func Mechanisms() []Mechanism {
	return []Mechanism{MechanismRepetition, MechanismAbstinence, MechanismDevotional, MechanismCharitable}
}

// AtonementTask tracks progress for a single mechanism within a plan.
// Completed never exceeds Required.
type AtonementTask struct {
	Mechanism Mechanism
	Required  float64
	Completed float64
	Done      bool
}

// AtonementPlan is a remediation plan opened against a negative action.
// Created by the atonement engine, mutated only by proof submission,
// archived on completion or expiry.
type AtonementPlan struct {
	ID             uuid.UUID
	IdentityID     uuid.UUID
	OriginActionID uuid.UUID
	OriginAction   string
	Category       string // Negative category the plan offsets on completion.
	Severity       Severity
	Tasks          []AtonementTask
	Status         PlanStatus
	CreatedAt      time.Time
	Deadline       time.Time
	ResolvedAt     *time.Time
}

// Task returns a pointer to the task for the given mechanism, or nil.
func (p *AtonementPlan) Task(m Mechanism) *AtonementTask {
	for i := range p.Tasks {
		if p.Tasks[i].Mechanism == m {
			return &p.Tasks[i]
		}
	}
	return nil
}

// AllTasksDone reports whether every task reached its required amount.
func (p *AtonementPlan) AllTasksDone() bool {
	for i := range p.Tasks {
		if !p.Tasks[i].Done {
			return false
		}
	}
	return len(p.Tasks) > 0
}

// QEntry is one learned utility cell of an identity's sparse Q-table.
// Untouched (role, action) pairs are implicitly zero and never stored.
type QEntry struct {
	IdentityID uuid.UUID
	Role       Role
	Action     string
	Value      float64
	VisitCount int
	UpdatedAt  time.Time
}

// LifecycleEvent records one death+rebirth pair. Written once, never mutated.
type LifecycleEvent struct {
	ID                uuid.UUID
	IdentityID        uuid.UUID // The deceased identity.
	NewIdentityID     uuid.UUID // The reborn successor.
	Loka              Loka
	NetKarmaAtDeath   float64
	CarryoverPositive float64 // meritScore × 0.20
	CarryoverNegative float64 // penaltyScore × 0.50
	RebirthCount      int     // Of the successor.
	CreatedAt         time.Time
}

// AppealStatus is the resolution state of an appeal.
type AppealStatus string

const (
	AppealAccepted AppealStatus = "accepted"
	AppealRejected AppealStatus = "rejected"
)

// Appeal contests a classified action. At most one appeal exists per
// action record; acceptance reverses the proportional ledger delta.
type Appeal struct {
	ID              uuid.UUID
	RequestID       string
	IdentityID      uuid.UUID
	ActionRecordID  uuid.UUID
	Reason          string
	Status          AppealStatus
	RevisedSeverity Severity // Severity after re-classification. SeverityNone = fully cleared.
	ReversedDelta   float64  // Ledger amount credited back.
	NewPlanID       *uuid.UUID
	CreatedAt       time.Time
}

// NotificationChannel is a configured outbound destination for lifecycle
// and feedback messages. Tags select which message kinds a channel receives.
type NotificationChannel struct {
	ID          uuid.UUID
	Name        string
	ChannelType string // "webhook" or "log".
	Tags        []string
	Config      map[string]string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewID generates a new random UUID.
func NewID() uuid.UUID {
	return uuid.New()
}
