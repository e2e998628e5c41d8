// Package memory implements the unified Store interface in process memory.
// Used by tests and ephemeral runs; it honors the same version-check and
// idempotency semantics as the database backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/debt"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/lifecycle"
)

type qKey struct {
	identity uuid.UUID
	role     domain.Role
	action   string
}

// Store is the in-memory backend. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	profiles  map[uuid.UUID]*domain.KarmaProfile
	actions   map[uuid.UUID]*domain.ActionRecord
	byRequest map[string]uuid.UUID
	plans     map[uuid.UUID]*domain.AtonementPlan
	qTable    map[qKey]*domain.QEntry
	events    []domain.LifecycleEvent
	appeals   map[uuid.UUID]*domain.Appeal
	byAction  map[uuid.UUID]uuid.UUID
	channels  map[uuid.UUID]*domain.NotificationChannel
	debts     []debt.Record
	processed map[string]string
}

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return &Store{
		profiles:  make(map[uuid.UUID]*domain.KarmaProfile),
		actions:   make(map[uuid.UUID]*domain.ActionRecord),
		byRequest: make(map[string]uuid.UUID),
		plans:     make(map[uuid.UUID]*domain.AtonementPlan),
		qTable:    make(map[qKey]*domain.QEntry),
		appeals:   make(map[uuid.UUID]*domain.Appeal),
		byAction:  make(map[uuid.UUID]uuid.UUID),
		channels:  make(map[uuid.UUID]*domain.NotificationChannel),
		processed: make(map[string]string),
	}
}

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }
func (s *Store) Driver() string                  { return "memory" }

// --- Profiles ---

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*domain.KarmaProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrProfileNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) CreateProfile(_ context.Context, p *domain.KarmaProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("profile %s already exists", p.ID)
	}
	s.profiles[p.ID] = p.Clone()
	return nil
}

// saveProfileLocked enforces the optimistic version check and bumps the
// stored and in-memory versions on success.
func (s *Store) saveProfileLocked(p *domain.KarmaProfile) error {
	current, ok := s.profiles[p.ID]
	if !ok {
		return fmt.Errorf("profile %s: %w", p.ID, domain.ErrProfileNotFound)
	}
	if current.Version != p.Version {
		return fmt.Errorf("profile %s version %d: %w", p.ID, p.Version, domain.ErrConcurrentConflict)
	}
	p.Version++
	s.profiles[p.ID] = p.Clone()
	return nil
}

// --- Action records ---

func (s *Store) GetAction(_ context.Context, id uuid.UUID) (*domain.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.actions[id]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, domain.ErrActionNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) GetActionByRequestID(_ context.Context, requestID string) (*domain.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, fmt.Errorf("request %q: %w", requestID, domain.ErrActionNotFound)
	}
	cp := *s.actions[id]
	return &cp, nil
}

func (s *Store) ListActions(_ context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ActionRecord
	for _, rec := range s.actions {
		if rec.IdentityID != identityID {
			continue
		}
		if !from.IsZero() && rec.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && rec.CreatedAt.After(to) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountRecentActions(_ context.Context, identityID uuid.UUID, action string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.actions {
		if rec.IdentityID == identityID && rec.Action == action && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// --- Atonement plans ---

func (s *Store) CreatePlan(_ context.Context, plan *domain.AtonementPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storePlanLocked(plan)
	return nil
}

func (s *Store) storePlanLocked(plan *domain.AtonementPlan) {
	cp := *plan
	cp.Tasks = append([]domain.AtonementTask(nil), plan.Tasks...)
	s.plans[plan.ID] = &cp
}

func (s *Store) GetPlan(_ context.Context, id uuid.UUID) (*domain.AtonementPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, domain.ErrPlanNotFound)
	}
	cp := *plan
	cp.Tasks = append([]domain.AtonementTask(nil), plan.Tasks...)
	return &cp, nil
}

func (s *Store) ListPlansByIdentity(_ context.Context, identityID uuid.UUID) ([]domain.AtonementPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AtonementPlan
	for _, plan := range s.plans {
		if plan.IdentityID != identityID {
			continue
		}
		cp := *plan
		cp.Tasks = append([]domain.AtonementTask(nil), plan.Tasks...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdatePlan(_ context.Context, plan *domain.AtonementPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; !ok {
		return fmt.Errorf("plan %s: %w", plan.ID, domain.ErrPlanNotFound)
	}
	s.storePlanLocked(plan)
	return nil
}

func (s *Store) ListDueOpenPlans(_ context.Context, now time.Time, limit int) ([]domain.AtonementPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AtonementPlan
	for _, plan := range s.plans {
		if plan.Status != domain.PlanOpen || plan.Deadline.After(now) {
			continue
		}
		cp := *plan
		cp.Tasks = append([]domain.AtonementTask(nil), plan.Tasks...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ExpireIfOpen(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return false, fmt.Errorf("plan %s: %w", id, domain.ErrPlanNotFound)
	}
	if plan.Status != domain.PlanOpen {
		return false, nil
	}
	plan.Status = domain.PlanExpired
	resolved := now
	plan.ResolvedAt = &resolved
	return true, nil
}

// --- Q-table ---

func (s *Store) GetQEntry(_ context.Context, identityID uuid.UUID, role domain.Role, action string) (*domain.QEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.qTable[qKey{identityID, role, action}]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (s *Store) QRowsForRole(_ context.Context, identityID uuid.UUID, role domain.Role) ([]domain.QEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QEntry
	for k, entry := range s.qTable {
		if k.identity == identityID && k.role == role {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out, nil
}

// --- Lifecycle events ---

func (s *Store) CommitRebirth(_ context.Context, r *lifecycle.Rebirth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveProfileLocked(r.Deceased); err != nil {
		return err
	}
	if _, ok := s.profiles[r.Successor.ID]; ok {
		return fmt.Errorf("successor profile %s already exists", r.Successor.ID)
	}
	s.profiles[r.Successor.ID] = r.Successor.Clone()
	s.events = append(s.events, *r.Event)
	return nil
}

func (s *Store) ListLifecycleEvents(_ context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.LifecycleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LifecycleEvent
	for _, ev := range s.events {
		if ev.IdentityID != identityID && ev.NewIdentityID != identityID {
			continue
		}
		if !from.IsZero() && ev.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && ev.CreatedAt.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// --- Appeals ---

func (s *Store) CreateAppeal(_ context.Context, a *domain.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAppealLocked(a)
}

func (s *Store) createAppealLocked(a *domain.Appeal) error {
	if _, ok := s.byAction[a.ActionRecordID]; ok {
		return fmt.Errorf("action %s: %w", a.ActionRecordID, domain.ErrAlreadyAppealed)
	}
	cp := *a
	s.appeals[a.ID] = &cp
	s.byAction[a.ActionRecordID] = a.ID
	return nil
}

func (s *Store) GetAppeal(_ context.Context, id uuid.UUID) (*domain.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appeals[id]
	if !ok {
		return nil, fmt.Errorf("appeal %s: %w", id, domain.ErrNotAppealable)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAppealByAction(_ context.Context, actionRecordID uuid.UUID) (*domain.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAction[actionRecordID]
	if !ok {
		return nil, nil
	}
	cp := *s.appeals[id]
	return &cp, nil
}

func (s *Store) ListAppealsByIdentity(_ context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Appeal
	for _, a := range s.appeals {
		if a.IdentityID != identityID {
			continue
		}
		if !from.IsZero() && a.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && a.CreatedAt.After(to) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Outcome commits ---

func (s *Store) CommitAction(_ context.Context, out *engine.ActionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRequest[out.Record.RequestID]; ok {
		return fmt.Errorf("request %q: %w", out.Record.RequestID, domain.ErrDuplicateEvent)
	}
	if err := s.saveProfileLocked(out.Profile); err != nil {
		return err
	}

	rec := *out.Record
	s.actions[rec.ID] = &rec
	s.byRequest[rec.RequestID] = rec.ID

	if out.QEntry != nil {
		cp := *out.QEntry
		s.qTable[qKey{cp.IdentityID, cp.Role, cp.Action}] = &cp
	}
	if out.Plan != nil {
		s.storePlanLocked(out.Plan)
	}
	return nil
}

func (s *Store) CommitProof(_ context.Context, out *engine.ProofOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[out.RequestID]; ok {
		return fmt.Errorf("request %q: %w", out.RequestID, domain.ErrDuplicateEvent)
	}
	if out.Profile != nil {
		if err := s.saveProfileLocked(out.Profile); err != nil {
			return err
		}
	}
	s.processed[out.RequestID] = "proof"
	s.storePlanLocked(out.Plan)
	return nil
}

func (s *Store) CommitAppeal(_ context.Context, out *engine.AppealOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[out.Appeal.RequestID]; ok {
		return fmt.Errorf("request %q: %w", out.Appeal.RequestID, domain.ErrDuplicateEvent)
	}
	if _, ok := s.byAction[out.Appeal.ActionRecordID]; ok {
		return fmt.Errorf("action %s: %w", out.Appeal.ActionRecordID, domain.ErrAlreadyAppealed)
	}
	if out.Profile != nil {
		if err := s.saveProfileLocked(out.Profile); err != nil {
			return err
		}
	}
	if err := s.createAppealLocked(out.Appeal); err != nil {
		return err
	}
	s.processed[out.Appeal.RequestID] = "appeal"

	if rec, ok := s.actions[out.Record.ID]; ok {
		rec.Appealed = true
	}
	if out.Plan != nil {
		s.storePlanLocked(out.Plan)
	}
	if out.Superseded != nil {
		s.storePlanLocked(out.Superseded)
	}
	return nil
}

func (s *Store) IsRequestProcessed(_ context.Context, requestID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[requestID]
	return ok, nil
}

// --- Notification channels ---

func (s *Store) GetChannel(_ context.Context, id uuid.UUID) (*domain.NotificationChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", id)
	}
	cp := *ch
	return &cp, nil
}

func (s *Store) GetChannelByName(_ context.Context, name string) (*domain.NotificationChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels {
		if ch.Name == name {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("channel %q not found", name)
}

func (s *Store) ListChannels(_ context.Context) ([]domain.NotificationChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NotificationChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateChannel(_ context.Context, ch *domain.NotificationChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.channels {
		if existing.Name == ch.Name {
			return fmt.Errorf("channel %q already exists", ch.Name)
		}
	}
	cp := *ch
	s.channels[ch.ID] = &cp
	return nil
}

func (s *Store) UpdateChannel(_ context.Context, ch *domain.NotificationChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[ch.ID]; !ok {
		return fmt.Errorf("channel %s not found", ch.ID)
	}
	cp := *ch
	s.channels[ch.ID] = &cp
	return nil
}

func (s *Store) DeleteChannel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return fmt.Errorf("channel %s not found", id)
	}
	delete(s.channels, id)
	return nil
}

// --- Relationship debts ---

func (s *Store) CreateDebt(_ context.Context, r *debt.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debts = append(s.debts, *r)
	return nil
}

func (s *Store) ListDebtsByDebtor(_ context.Context, debtor uuid.UUID) ([]debt.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []debt.Record
	for _, r := range s.debts {
		if r.Debtor == debtor {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListDebtsByReceiver(_ context.Context, receiver string) ([]debt.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []debt.Record
	for _, r := range s.debts {
		if r.Receiver == receiver {
			out = append(out, r)
		}
	}
	return out, nil
}
