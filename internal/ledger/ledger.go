// Package ledger maintains per-identity token balances across merit and
// penalty categories, with lazy decay and clamped mutations.
//
// All mutations are expressed as deltas against an in-memory KarmaProfile
// held under the engine's per-identity lock; idempotent replay protection
// (rejecting a repeated ActionRecord requestId) is enforced at commit time
// by the storage layer's unique constraint.
package ledger

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jkaninda/samsara/internal/domain"
)

// CategorySource resolves category definitions. Satisfied by *classifier.Catalog.
type CategorySource interface {
	Category(name string) (*domain.TokenCategory, bool)
	Categories() []*domain.TokenCategory
}

// Ledger applies balance mutations to karma profiles.
type Ledger struct {
	unit    time.Duration // Elapsed-time unit for decay exponents.
	metrics *Metrics
	logger  *slog.Logger
}

// New creates a Ledger. unit is the decay time unit; zero defaults to 24h.
func New(unit time.Duration, metrics *Metrics, logger *slog.Logger) *Ledger {
	if unit <= 0 {
		unit = 24 * time.Hour
	}
	return &Ledger{unit: unit, metrics: metrics, logger: logger}
}

// splitKey reverses domain.BalanceKey.
func splitKey(key string) (category string, severity domain.Severity) {
	if cat, sev, ok := strings.Cut(key, "/"); ok {
		return cat, domain.Severity(sev)
	}
	return key, domain.SeverityNone
}

// weighted returns the merit-effect of an amount in a category: weight for
// positive categories, weight × severity multiplier for negative ones, and
// zero for neutral categories.
func weighted(category *domain.TokenCategory, severity domain.Severity, amount float64) float64 {
	switch category.Polarity {
	case domain.PolarityPositive:
		return amount * category.Weight
	case domain.PolarityNegative:
		return amount * category.Weight * category.Multiplier(severity)
	default:
		return 0
	}
}

// Apply credits a classified action's amount to the profile and returns the
// new balance and the signed weighted karma delta (positive for merit,
// negative for penalty, zero for neutral).
//
// A bucket funded for the first time starts its decay clock at now; decay
// only ever covers time during which the balance existed.
//
// The depletion counter moves by the same signed delta: it increases with
// positive contributions and decreases with negative ones.
func (l *Ledger) Apply(p *domain.KarmaProfile, category *domain.TokenCategory, severity domain.Severity, amount float64, now time.Time) (newBalance, delta float64) {
	if amount < 0 {
		amount = 0
	}
	key := domain.BalanceKey(category.Name, severity)
	if p.Balances == nil {
		p.Balances = make(map[string]float64)
	}
	if _, ok := p.LastDecayedAt[key]; !ok {
		if p.LastDecayedAt == nil {
			p.LastDecayedAt = make(map[string]time.Time)
		}
		p.LastDecayedAt[key] = now
	}
	p.Balances[key] += amount
	newBalance = p.Balances[key]

	delta = weighted(category, severity, amount)
	if category.Polarity == domain.PolarityNegative {
		delta = -delta
	}
	p.DepletionCounter += delta

	if l.metrics != nil {
		l.metrics.DeltasApplied.WithLabelValues(category.Name).Inc()
	}
	return newBalance, delta
}

// Debit reduces a balance by up to amount, clamped at zero, and returns the
// new balance and the weighted amount actually removed.
//
// Debiting a negative category is remediation: the depletion counter is
// credited by the weighted amount healed. Debiting a positive category
// (appeal reversal of a mistaken credit) debits nothing from the counter;
// the counter only decreases via negative actions.
func (l *Ledger) Debit(p *domain.KarmaProfile, category *domain.TokenCategory, severity domain.Severity, amount float64) (newBalance, healed float64) {
	key := domain.BalanceKey(category.Name, severity)
	current := p.Balances[key]
	removed := math.Min(current, amount)
	if removed <= 0 {
		return current, 0
	}
	p.Balances[key] = current - removed
	healed = weighted(category, severity, removed)
	if category.Polarity == domain.PolarityNegative {
		p.DepletionCounter += healed
	}
	return p.Balances[key], healed
}

// ZeroBalance removes the entire balance for one (category, severity) bucket
// and returns the weighted amount healed. Used when full plan completion
// offsets the originating negative contribution in full.
func (l *Ledger) ZeroBalance(p *domain.KarmaProfile, category *domain.TokenCategory, severity domain.Severity) (healed float64) {
	_, healed = l.Debit(p, category, severity, p.Balances[domain.BalanceKey(category.Name, severity)])
	return healed
}

// DecayAll applies lazy exponential decay to every balance of the profile:
// amount × (1 − decayRate)^elapsedUnits, clamped at zero. Each bucket records
// its last-decayed timestamp so an elapsed interval is never applied twice;
// partial units carry over to the next call.
//
// Decay of a negative balance heals the depletion counter by the weighted
// amount removed; a debt that fades no longer drags the identity down.
// Decay of positive balances leaves the counter untouched.
func (l *Ledger) DecayAll(p *domain.KarmaProfile, source CategorySource, now time.Time) {
	if p.LastDecayedAt == nil {
		p.LastDecayedAt = make(map[string]time.Time)
	}
	for key, amount := range p.Balances {
		catName, severity := splitKey(key)
		category, ok := source.Category(catName)
		if !ok || category.DecayRate <= 0 {
			continue
		}

		last, ok := p.LastDecayedAt[key]
		if !ok {
			last = p.CreatedAt
		}
		units := int(now.Sub(last) / l.unit)
		if units <= 0 {
			continue
		}

		decayed := amount * math.Pow(1-category.DecayRate, float64(units))
		if decayed < 0 {
			decayed = 0
		}
		removed := amount - decayed
		p.Balances[key] = decayed
		// Advance by whole units only, so the fractional remainder of the
		// interval is decayed on a later call rather than lost.
		p.LastDecayedAt[key] = last.Add(time.Duration(units) * l.unit)

		if removed > 0 && category.Polarity == domain.PolarityNegative {
			p.DepletionCounter += weighted(category, severity, removed)
		}
		if removed > 0 && l.metrics != nil {
			l.metrics.DecayRemoved.WithLabelValues(category.Name).Add(removed)
		}
	}
}
