// Package predictor implements the tabular reinforcement learner that
// predicts role transitions and recommends next actions.
//
// State space: discretized role. Action space: the catalog of recognized
// actions. Each identity owns its own sparse Q-table; untouched
// (role, action) pairs read as zero and are never pre-populated. All access
// to an identity's rows happens under the engine's per-identity
// serialization discipline; there is no shared global table.
package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// Store provides read access to persisted Q entries. Updated entries are
// returned to the engine and committed together with the rest of the event's
// mutations.
type Store interface {
	// GetQEntry returns the entry for (identity, role, action), or nil when
	// the pair has never been visited.
	GetQEntry(ctx context.Context, identityID uuid.UUID, role domain.Role, action string) (*domain.QEntry, error)
	// QRowsForRole returns all stored entries for one identity and role.
	QRowsForRole(ctx context.Context, identityID uuid.UUID, role domain.Role) ([]domain.QEntry, error)
}

// ActionSource lists the recognized action names. Satisfied by *classifier.Catalog.
type ActionSource interface {
	Actions() []string
}

// Config holds the learner's fixed constants.
type Config struct {
	Alpha          float64 // Learning rate. Default 0.1.
	Gamma          float64 // Discount factor. Default 0.9.
	Epsilon        float64 // Exploration probability. Default 0.1.
	BehavioralBias float64 // Reward adjustment magnitude. Default 0.
	// LowVisitThreshold marks a (role, action) pair as under-explored.
	// Default 3.
	LowVisitThreshold int
}

func (c Config) alpha() float64 {
	if c.Alpha > 0 {
		return c.Alpha
	}
	return 0.1
}

func (c Config) gamma() float64 {
	if c.Gamma > 0 {
		return c.Gamma
	}
	return 0.9
}

func (c Config) epsilon() float64 {
	if c.Epsilon > 0 {
		return c.Epsilon
	}
	return 0.1
}

func (c Config) lowVisit() int {
	if c.LowVisitThreshold > 0 {
		return c.LowVisitThreshold
	}
	return 3
}

// Predictor is the tabular reinforcement learner.
type Predictor struct {
	store      Store
	actions    ActionSource
	thresholds []domain.RoleThreshold
	config     Config
	metrics    *Metrics
	logger     *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Predictor.
func New(store Store, actions ActionSource, thresholds []domain.RoleThreshold, cfg Config, metrics *Metrics, logger *slog.Logger) *Predictor {
	if len(thresholds) == 0 {
		thresholds = domain.DefaultRoleThresholds()
	}
	return &Predictor{
		store:      store,
		actions:    actions,
		thresholds: thresholds,
		config:     cfg,
		metrics:    metrics,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// reward derives the learning signal from an action record: its karma delta
// nudged by the behavioral bias in the direction the delta already points.
func (p *Predictor) reward(rec *domain.ActionRecord) float64 {
	r := rec.KarmaDelta
	switch {
	case r > 0:
		r += p.config.BehavioralBias
	case r < 0:
		r -= p.config.BehavioralBias
	}
	return r
}

// Observe applies the Q-update for one action record:
//
//	Q(role, action) += α × (reward + γ × max_a' Q(nextRole, a') − Q(role, action))
//
// and returns the updated entry for the engine to persist. nextRole is the
// role the identity holds after the action (usually unchanged).
func (p *Predictor) Observe(ctx context.Context, rec *domain.ActionRecord, nextRole domain.Role) (*domain.QEntry, error) {
	entry, err := p.store.GetQEntry(ctx, rec.IdentityID, rec.Role, rec.Action)
	if err != nil {
		return nil, fmt.Errorf("loading q entry (%s, %s): %w", rec.Role, rec.Action, err)
	}
	if entry == nil {
		// Lazy zero-initialization: absent pairs read as zero.
		entry = &domain.QEntry{IdentityID: rec.IdentityID, Role: rec.Role, Action: rec.Action}
	}

	maxNext, err := p.maxQ(ctx, rec.IdentityID, nextRole)
	if err != nil {
		return nil, err
	}

	target := p.reward(rec) + p.config.gamma()*maxNext
	entry.Value += p.config.alpha() * (target - entry.Value)
	entry.VisitCount++
	entry.UpdatedAt = time.Now().UTC()

	if p.metrics != nil {
		p.metrics.Updates.Inc()
	}
	return entry, nil
}

// maxQ returns max over the action space of Q(role, a'). Unvisited actions
// read as zero, so the floor is zero while any action remains unvisited.
func (p *Predictor) maxQ(ctx context.Context, identityID uuid.UUID, role domain.Role) (float64, error) {
	rows, err := p.store.QRowsForRole(ctx, identityID, role)
	if err != nil {
		return 0, fmt.Errorf("loading q rows for role %s: %w", role, err)
	}
	max := 0.0
	if len(rows) >= len(p.actions.Actions()) {
		// Fully visited role: the implicit-zero floor no longer applies.
		max = rows[0].Value
	}
	for _, row := range rows {
		if row.Value > max {
			max = row.Value
		}
	}
	return max, nil
}

// RecommendAction returns the next-best action for the identity's current
// role using an ε-greedy policy: with probability ε it explores an unseen or
// low-count action, otherwise it exploits the argmax-Q action.
func (p *Predictor) RecommendAction(ctx context.Context, identityID uuid.UUID, role domain.Role) (string, error) {
	rows, err := p.store.QRowsForRole(ctx, identityID, role)
	if err != nil {
		return "", fmt.Errorf("loading q rows for role %s: %w", role, err)
	}

	if p.explore() {
		if action := p.pickUnexplored(rows); action != "" {
			if p.metrics != nil {
				p.metrics.Explorations.Inc()
			}
			return action, nil
		}
	}

	var best string
	bestValue := 0.0
	for _, row := range rows {
		if best == "" || row.Value > bestValue {
			best = row.Action
			bestValue = row.Value
		}
	}
	if best == "" {
		// Nothing learned for this role yet; explore regardless of ε.
		return p.randomAction(), nil
	}
	return best, nil
}

// PredictRoleTransition returns the role the identity is headed toward: if
// the merit delta promised by the top-Q action would cross a threshold
// boundary, the predicted role shifts, by at most one rung per action.
func (p *Predictor) PredictRoleTransition(ctx context.Context, profile *domain.KarmaProfile) (domain.Role, error) {
	maxQ, err := p.maxQ(ctx, profile.ID, profile.Role)
	if err != nil {
		return profile.Role, err
	}
	target := domain.RoleForKarma(p.thresholds, profile.NetKarma+maxQ)
	next := domain.StepRole(profile.Role, target)
	if next != profile.Role && p.metrics != nil {
		p.metrics.RoleTransitions.Inc()
	}
	return next, nil
}

func (p *Predictor) explore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < p.config.epsilon()
}

func (p *Predictor) randomAction() string {
	all := p.actions.Actions()
	if len(all) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return all[p.rng.Intn(len(all))]
}

// pickUnexplored returns a random action that is unseen or below the
// low-visit threshold for this role, or "" when everything is well explored.
func (p *Predictor) pickUnexplored(rows []domain.QEntry) string {
	visits := make(map[string]int, len(rows))
	for _, row := range rows {
		visits[row.Action] = row.VisitCount
	}
	var candidates []string
	for _, action := range p.actions.Actions() {
		if visits[action] < p.config.lowVisit() {
			candidates = append(candidates, action)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return candidates[p.rng.Intn(len(candidates))]
}
