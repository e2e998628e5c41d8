package postgres

import (
	"encoding/json"
	"time"

	"github.com/jkaninda/samsara/internal/debt"
	"github.com/jkaninda/samsara/internal/domain"
)

// --- Profile ---

func toProfileModel(p *domain.KarmaProfile) ProfileModel {
	balances, _ := json.Marshal(p.Balances)
	decayed, _ := json.Marshal(p.LastDecayedAt)
	return ProfileModel{
		ID:                 p.ID,
		Role:               string(p.Role),
		State:              string(p.State),
		Balances:           JSONB(balances),
		MeritScore:         p.MeritScore,
		PenaltyScore:       p.PenaltyScore,
		NetKarma:           p.NetKarma,
		WeightedKarmaScore: p.WeightedKarmaScore,
		DepletionCounter:   p.DepletionCounter,
		RebirthCount:       p.RebirthCount,
		AncestorID:         p.AncestorID,
		LastDecayedAt:      JSONB(decayed),
		Version:            p.Version,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toProfileDomain(m *ProfileModel) *domain.KarmaProfile {
	p := &domain.KarmaProfile{
		ID:                 m.ID,
		Role:               domain.Role(m.Role),
		State:              domain.ProfileState(m.State),
		Balances:           make(map[string]float64),
		MeritScore:         m.MeritScore,
		PenaltyScore:       m.PenaltyScore,
		NetKarma:           m.NetKarma,
		WeightedKarmaScore: m.WeightedKarmaScore,
		DepletionCounter:   m.DepletionCounter,
		RebirthCount:       m.RebirthCount,
		AncestorID:         m.AncestorID,
		LastDecayedAt:      make(map[string]time.Time),
		Version:            m.Version,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	_ = json.Unmarshal([]byte(m.Balances), &p.Balances)
	_ = json.Unmarshal([]byte(m.LastDecayedAt), &p.LastDecayedAt)
	return p
}

// --- Action record ---

func toActionModel(r *domain.ActionRecord) ActionRecordModel {
	return ActionRecordModel{
		ID:           r.ID,
		RequestID:    r.RequestID,
		IdentityID:   r.IdentityID,
		Action:       r.Action,
		Role:         string(r.Role),
		Intensity:    r.Intensity,
		Category:     r.Category,
		Severity:     string(r.Severity),
		TokenAmount:  r.TokenAmount,
		KarmaDelta:   r.KarmaDelta,
		Counterparty: r.Counterparty,
		Appealed:     r.Appealed,
		CreatedAt:    r.CreatedAt,
	}
}

func toActionDomain(m *ActionRecordModel) *domain.ActionRecord {
	return &domain.ActionRecord{
		ID:           m.ID,
		RequestID:    m.RequestID,
		IdentityID:   m.IdentityID,
		Action:       m.Action,
		Role:         domain.Role(m.Role),
		Intensity:    m.Intensity,
		Category:     m.Category,
		Severity:     domain.Severity(m.Severity),
		TokenAmount:  m.TokenAmount,
		KarmaDelta:   m.KarmaDelta,
		Counterparty: m.Counterparty,
		Appealed:     m.Appealed,
		CreatedAt:    m.CreatedAt,
	}
}

// --- Atonement plan ---

func toPlanModel(p *domain.AtonementPlan) AtonementPlanModel {
	tasks, _ := json.Marshal(p.Tasks)
	return AtonementPlanModel{
		ID:             p.ID,
		IdentityID:     p.IdentityID,
		OriginActionID: p.OriginActionID,
		OriginAction:   p.OriginAction,
		Category:       p.Category,
		Severity:       string(p.Severity),
		Tasks:          JSONB(tasks),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
		Deadline:       p.Deadline,
		ResolvedAt:     p.ResolvedAt,
	}
}

func toPlanDomain(m *AtonementPlanModel) *domain.AtonementPlan {
	p := &domain.AtonementPlan{
		ID:             m.ID,
		IdentityID:     m.IdentityID,
		OriginActionID: m.OriginActionID,
		OriginAction:   m.OriginAction,
		Category:       m.Category,
		Severity:       domain.Severity(m.Severity),
		Status:         domain.PlanStatus(m.Status),
		CreatedAt:      m.CreatedAt,
		Deadline:       m.Deadline,
		ResolvedAt:     m.ResolvedAt,
	}
	_ = json.Unmarshal([]byte(m.Tasks), &p.Tasks)
	return p
}

// --- Q-table ---

func toQEntryModel(q *domain.QEntry) QEntryModel {
	return QEntryModel{
		IdentityID: q.IdentityID,
		Role:       string(q.Role),
		Action:     q.Action,
		Value:      q.Value,
		VisitCount: q.VisitCount,
		UpdatedAt:  q.UpdatedAt,
	}
}

func toQEntryDomain(m *QEntryModel) *domain.QEntry {
	return &domain.QEntry{
		IdentityID: m.IdentityID,
		Role:       domain.Role(m.Role),
		Action:     m.Action,
		Value:      m.Value,
		VisitCount: m.VisitCount,
		UpdatedAt:  m.UpdatedAt,
	}
}

// --- Lifecycle event ---

func toLifecycleModel(ev *domain.LifecycleEvent) LifecycleEventModel {
	return LifecycleEventModel{
		ID:                ev.ID,
		IdentityID:        ev.IdentityID,
		NewIdentityID:     ev.NewIdentityID,
		Loka:              string(ev.Loka),
		NetKarmaAtDeath:   ev.NetKarmaAtDeath,
		CarryoverPositive: ev.CarryoverPositive,
		CarryoverNegative: ev.CarryoverNegative,
		RebirthCount:      ev.RebirthCount,
		CreatedAt:         ev.CreatedAt,
	}
}

func toLifecycleDomain(m *LifecycleEventModel) *domain.LifecycleEvent {
	return &domain.LifecycleEvent{
		ID:                m.ID,
		IdentityID:        m.IdentityID,
		NewIdentityID:     m.NewIdentityID,
		Loka:              domain.Loka(m.Loka),
		NetKarmaAtDeath:   m.NetKarmaAtDeath,
		CarryoverPositive: m.CarryoverPositive,
		CarryoverNegative: m.CarryoverNegative,
		RebirthCount:      m.RebirthCount,
		CreatedAt:         m.CreatedAt,
	}
}

// --- Appeal ---

func toAppealModel(a *domain.Appeal) AppealModel {
	return AppealModel{
		ID:              a.ID,
		RequestID:       a.RequestID,
		IdentityID:      a.IdentityID,
		ActionRecordID:  a.ActionRecordID,
		Reason:          a.Reason,
		Status:          string(a.Status),
		RevisedSeverity: string(a.RevisedSeverity),
		ReversedDelta:   a.ReversedDelta,
		NewPlanID:       a.NewPlanID,
		CreatedAt:       a.CreatedAt,
	}
}

func toAppealDomain(m *AppealModel) *domain.Appeal {
	return &domain.Appeal{
		ID:              m.ID,
		RequestID:       m.RequestID,
		IdentityID:      m.IdentityID,
		ActionRecordID:  m.ActionRecordID,
		Reason:          m.Reason,
		Status:          domain.AppealStatus(m.Status),
		RevisedSeverity: domain.Severity(m.RevisedSeverity),
		ReversedDelta:   m.ReversedDelta,
		NewPlanID:       m.NewPlanID,
		CreatedAt:       m.CreatedAt,
	}
}

// --- Notification channel ---

func toChannelModel(ch *domain.NotificationChannel) NotificationChannelModel {
	tags, _ := json.Marshal(ch.Tags)
	cfg, _ := json.Marshal(ch.Config)
	return NotificationChannelModel{
		ID:          ch.ID,
		Name:        ch.Name,
		ChannelType: ch.ChannelType,
		Tags:        JSONB(tags),
		Config:      JSONB(cfg),
		Enabled:     ch.Enabled,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}

func toChannelDomain(m *NotificationChannelModel) *domain.NotificationChannel {
	ch := &domain.NotificationChannel{
		ID:          m.ID,
		Name:        m.Name,
		ChannelType: m.ChannelType,
		Config:      make(map[string]string),
		Enabled:     m.Enabled,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	_ = json.Unmarshal([]byte(m.Tags), &ch.Tags)
	_ = json.Unmarshal([]byte(m.Config), &ch.Config)
	return ch
}

// --- Relationship debt ---

func toDebtModel(r *debt.Record) DebtModel {
	return DebtModel{
		ID:        r.ID,
		Debtor:    r.Debtor,
		Receiver:  r.Receiver,
		Severity:  string(r.Severity),
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
	}
}

func toDebtDomain(m *DebtModel) debt.Record {
	return debt.Record{
		ID:        m.ID,
		Debtor:    m.Debtor,
		Receiver:  m.Receiver,
		Severity:  domain.Severity(m.Severity),
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
}
