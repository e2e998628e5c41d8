package httpapi

import (
	"time"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/lifecycle"
)

// **** Profile ****

// ProfileResponse is the JSON view of a karma profile.
type ProfileResponse struct {
	ID                 string             `json:"id"`
	Role               string             `json:"role"`
	State              string             `json:"state"`
	Balances           map[string]float64 `json:"balances"`
	MeritScore         float64            `json:"merit_score"`
	PenaltyScore       float64            `json:"penalty_score"`
	NetKarma           float64            `json:"net_karma"`
	WeightedKarmaScore float64            `json:"weighted_karma_score"`
	DepletionCounter   float64            `json:"depletion_counter"`
	RebirthCount       int                `json:"rebirth_count"`
	AncestorID         string             `json:"ancestor_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func toProfileResponse(p *domain.KarmaProfile) ProfileResponse {
	resp := ProfileResponse{
		ID:                 p.ID.String(),
		Role:               string(p.Role),
		State:              string(p.State),
		Balances:           p.Balances,
		MeritScore:         p.MeritScore,
		PenaltyScore:       p.PenaltyScore,
		NetKarma:           p.NetKarma,
		WeightedKarmaScore: p.WeightedKarmaScore,
		DepletionCounter:   p.DepletionCounter,
		RebirthCount:       p.RebirthCount,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.AncestorID != nil {
		resp.AncestorID = p.AncestorID.String()
	}
	return resp
}

// **** Actions ****

// ActionRequest is the JSON body for POST /v1/actions.
type ActionRequest struct {
	RequestID    string            `json:"request_id"`
	IdentityID   string            `json:"identity_id"`
	Action       string            `json:"action"`
	Intensity    float64           `json:"intensity,omitempty"` // 0.0–2.0. Omitted = 1.0.
	Context      map[string]string `json:"context,omitempty"`
	Counterparty string            `json:"counterparty,omitempty"`
}

// ClassificationResponse is the resolved classification of an action.
type ClassificationResponse struct {
	Category  string `json:"category"`
	Severity  string `json:"severity,omitempty"`
	Miss      bool   `json:"miss,omitempty"`      // Unknown action; recorded as neutral.
	Escalated int    `json:"escalated,omitempty"` // Tiers bumped by repetition.
}

// ActionRecordResponse is the JSON view of one recorded action.
type ActionRecordResponse struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	IdentityID   string    `json:"identity_id"`
	Action       string    `json:"action"`
	Role         string    `json:"role"`
	Intensity    float64   `json:"intensity"`
	Category     string    `json:"category"`
	Severity     string    `json:"severity,omitempty"`
	TokenAmount  float64   `json:"token_amount"`
	KarmaDelta   float64   `json:"karma_delta"`
	Counterparty string    `json:"counterparty,omitempty"`
	Appealed     bool      `json:"appealed"`
	CreatedAt    time.Time `json:"created_at"`
}

func toActionRecordResponse(r *domain.ActionRecord) ActionRecordResponse {
	return ActionRecordResponse{
		ID:           r.ID.String(),
		RequestID:    r.RequestID,
		IdentityID:   r.IdentityID.String(),
		Action:       r.Action,
		Role:         string(r.Role),
		Intensity:    r.Intensity,
		Category:     r.Category,
		Severity:     severityString(r.Severity),
		TokenAmount:  r.TokenAmount,
		KarmaDelta:   r.KarmaDelta,
		Counterparty: r.Counterparty,
		Appealed:     r.Appealed,
		CreatedAt:    r.CreatedAt,
	}
}

// ActionResponse is the JSON response for POST /v1/actions.
type ActionResponse struct {
	Record            ActionRecordResponse    `json:"record"`
	Profile           ProfileResponse         `json:"profile"`
	Classification    ClassificationResponse  `json:"classification"`
	RecommendedAction string                  `json:"recommended_action,omitempty"`
	PredictedRole     string                  `json:"predicted_role"`
	Plan              *PlanResponse           `json:"plan,omitempty"`
	Rebirth           *RebirthResponse        `json:"rebirth,omitempty"`
	Duplicate         bool                    `json:"duplicate,omitempty"`
}

func toActionResponse(res *engine.ActionResult) ActionResponse {
	resp := ActionResponse{
		Record:            toActionRecordResponse(res.Record),
		Profile:           toProfileResponse(res.Profile),
		RecommendedAction: res.RecommendedAction,
		PredictedRole:     string(res.PredictedRole),
		Duplicate:         res.Duplicate,
	}
	cls := res.Classification
	resp.Classification = ClassificationResponse{
		Severity:  severityString(cls.Severity),
		Miss:      cls.Miss,
		Escalated: cls.Escalated,
	}
	if cls.Category != nil {
		resp.Classification.Category = cls.Category.Name
	}
	if res.Plan != nil {
		plan := toPlanResponse(res.Plan)
		resp.Plan = &plan
	}
	if res.Rebirth != nil {
		resp.Rebirth = toRebirthResponse(res.Rebirth)
	}
	return resp
}

// **** Atonement plans ****

// PlanTaskResponse is one mechanism's progress inside a plan.
type PlanTaskResponse struct {
	Mechanism string  `json:"mechanism"`
	Required  float64 `json:"required"`
	Completed float64 `json:"completed"`
	Done      bool    `json:"done"`
}

// PlanResponse is the JSON view of an atonement plan.
type PlanResponse struct {
	ID             string             `json:"id"`
	IdentityID     string             `json:"identity_id"`
	OriginActionID string             `json:"origin_action_id"`
	OriginAction   string             `json:"origin_action"`
	Category       string             `json:"category"`
	Severity       string             `json:"severity"`
	Tasks          []PlanTaskResponse `json:"tasks"`
	Status         string             `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	Deadline       time.Time          `json:"deadline"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
}

func toPlanResponse(p *domain.AtonementPlan) PlanResponse {
	tasks := make([]PlanTaskResponse, len(p.Tasks))
	for i, t := range p.Tasks {
		tasks[i] = PlanTaskResponse{
			Mechanism: string(t.Mechanism),
			Required:  t.Required,
			Completed: t.Completed,
			Done:      t.Done,
		}
	}
	return PlanResponse{
		ID:             p.ID.String(),
		IdentityID:     p.IdentityID.String(),
		OriginActionID: p.OriginActionID.String(),
		OriginAction:   p.OriginAction,
		Category:       p.Category,
		Severity:       severityString(p.Severity),
		Tasks:          tasks,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
		Deadline:       p.Deadline,
		ResolvedAt:     p.ResolvedAt,
	}
}

// **** Proofs ****

// ProofRequest is the JSON body for POST /v1/plans/{id}/proofs.
type ProofRequest struct {
	RequestID string  `json:"request_id"`
	Mechanism string  `json:"mechanism"`
	Amount    float64 `json:"amount"`
}

// ProofResponse is the JSON response after a proof submission.
type ProofResponse struct {
	Plan      PlanResponse     `json:"plan"`
	Profile   *ProfileResponse `json:"profile,omitempty"` // Present when redemption changed a balance.
	Redeemed  float64          `json:"redeemed"`
	Completed bool             `json:"completed"`
	Duplicate bool             `json:"duplicate,omitempty"`
}

func toProofResponse(res *engine.ProofResult) ProofResponse {
	resp := ProofResponse{
		Plan:      toPlanResponse(res.Plan),
		Redeemed:  res.Redeemed,
		Completed: res.Completed,
		Duplicate: res.Duplicate,
	}
	if res.Profile != nil {
		profile := toProfileResponse(res.Profile)
		resp.Profile = &profile
	}
	return resp
}

// **** Appeals ****

// AppealRequest is the JSON body for POST /v1/appeals.
type AppealRequest struct {
	RequestID      string `json:"request_id"`
	IdentityID     string `json:"identity_id"`
	ActionRecordID string `json:"action_record_id"`
	Reason         string `json:"reason"`
}

// AppealRecordResponse is the JSON view of one appeal.
type AppealRecordResponse struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	IdentityID      string    `json:"identity_id"`
	ActionRecordID  string    `json:"action_record_id"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	RevisedSeverity string    `json:"revised_severity,omitempty"` // Empty = fully cleared.
	ReversedDelta   float64   `json:"reversed_delta"`
	NewPlanID       string    `json:"new_plan_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAppealRecordResponse(a *domain.Appeal) AppealRecordResponse {
	resp := AppealRecordResponse{
		ID:              a.ID.String(),
		RequestID:       a.RequestID,
		IdentityID:      a.IdentityID.String(),
		ActionRecordID:  a.ActionRecordID.String(),
		Reason:          a.Reason,
		Status:          string(a.Status),
		RevisedSeverity: severityString(a.RevisedSeverity),
		ReversedDelta:   a.ReversedDelta,
		CreatedAt:       a.CreatedAt,
	}
	if a.NewPlanID != nil {
		resp.NewPlanID = a.NewPlanID.String()
	}
	return resp
}

// AppealResponse is the JSON response for POST /v1/appeals.
type AppealResponse struct {
	Appeal    AppealRecordResponse `json:"appeal"`
	Profile   *ProfileResponse     `json:"profile,omitempty"` // Present when the appeal was accepted.
	Plan      *PlanResponse        `json:"plan,omitempty"`    // Residual plan, if any.
	Duplicate bool                 `json:"duplicate,omitempty"`
}

func toAppealResponse(res *engine.AppealResult) AppealResponse {
	resp := AppealResponse{
		Appeal:    toAppealRecordResponse(res.Appeal),
		Duplicate: res.Duplicate,
	}
	if res.Profile != nil {
		profile := toProfileResponse(res.Profile)
		resp.Profile = &profile
	}
	if res.Plan != nil {
		plan := toPlanResponse(res.Plan)
		resp.Plan = &plan
	}
	return resp
}

// **** Lifecycle ****

// LifecycleEventResponse is the JSON view of one death/rebirth event.
type LifecycleEventResponse struct {
	ID                string    `json:"id"`
	IdentityID        string    `json:"identity_id"`
	NewIdentityID     string    `json:"new_identity_id"`
	Loka              string    `json:"loka"`
	NetKarmaAtDeath   float64   `json:"net_karma_at_death"`
	CarryoverPositive float64   `json:"carryover_positive"`
	CarryoverNegative float64   `json:"carryover_negative"`
	RebirthCount      int       `json:"rebirth_count"`
	CreatedAt         time.Time `json:"created_at"`
}

func toLifecycleEventResponse(ev *domain.LifecycleEvent) LifecycleEventResponse {
	return LifecycleEventResponse{
		ID:                ev.ID.String(),
		IdentityID:        ev.IdentityID.String(),
		NewIdentityID:     ev.NewIdentityID.String(),
		Loka:              string(ev.Loka),
		NetKarmaAtDeath:   ev.NetKarmaAtDeath,
		CarryoverPositive: ev.CarryoverPositive,
		CarryoverNegative: ev.CarryoverNegative,
		RebirthCount:      ev.RebirthCount,
		CreatedAt:         ev.CreatedAt,
	}
}

// RebirthResponse reports the transition triggered by an action.
type RebirthResponse struct {
	SuccessorID string                 `json:"successor_id"`
	Event       LifecycleEventResponse `json:"event"`
}

func toRebirthResponse(r *lifecycle.Rebirth) *RebirthResponse {
	return &RebirthResponse{
		SuccessorID: r.Successor.ID.String(),
		Event:       toLifecycleEventResponse(r.Event),
	}
}

// **** Audit ****

// AuditResponse is the JSON response for GET /v1/identities/{id}/audit.
type AuditResponse struct {
	IdentityID      string  `json:"identity_id"`
	StoredNetKarma  float64 `json:"stored_net_karma"`
	DerivedNetKarma float64 `json:"derived_net_karma"`
	StoredWeighted  float64 `json:"stored_weighted_karma_score"`
	DerivedWeighted float64 `json:"derived_weighted_karma_score"`
	ActionCount     int     `json:"action_count"`
	Consistent      bool    `json:"consistent"`
}

func toAuditResponse(r *engine.AuditReport) AuditResponse {
	return AuditResponse{
		IdentityID:      r.IdentityID.String(),
		StoredNetKarma:  r.StoredNetKarma,
		DerivedNetKarma: r.DerivedNetKarma,
		StoredWeighted:  r.StoredWeighted,
		DerivedWeighted: r.DerivedWeighted,
		ActionCount:     r.ActionCount,
		Consistent:      r.Consistent,
	}
}

// **** Notification channels ****

// NotificationChannelRequest is the JSON body for channel create/update.
type NotificationChannelRequest struct {
	Name        string            `json:"name"`
	ChannelType string            `json:"channel_type"` // "webhook", "slack", or "log".
	Tags        []string          `json:"tags"`         // "lifecycle", "feedback".
	Config      map[string]string `json:"config"`
	Enabled     *bool             `json:"enabled,omitempty"`
}

// NotificationChannelResponse is the JSON view of a channel.
type NotificationChannelResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ChannelType string            `json:"channel_type"`
	Tags        []string          `json:"tags"`
	Config      map[string]string `json:"config"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toNotificationChannelResponse(ch *domain.NotificationChannel) NotificationChannelResponse {
	return NotificationChannelResponse{
		ID:          ch.ID.String(),
		Name:        ch.Name,
		ChannelType: ch.ChannelType,
		Tags:        ch.Tags,
		Config:      ch.Config,
		Enabled:     ch.Enabled,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}

func severityString(s domain.Severity) string {
	if s == domain.SeverityNone {
		return ""
	}
	return string(s)
}
