package ledger

import (
	"github.com/jkaninda/samsara/internal/domain"
)

// Advanced category names recognized by the merit calculator. They carry
// karma across lifetimes and contribute only to the weighted score.
const (
	categoryAccumulatedPast = "accumulated-past"
	categoryAncestralDebt   = "ancestral-debt"
)

// Calculator derives aggregate scores from a profile's balances. It is a
// pure function over the snapshot: recomputing from persisted balances
// always reproduces the last emitted netKarma.
type Calculator struct {
	// CurrentLifeWeight scales this life's netKarma inside the weighted
	// score. Zero defaults to 1.
	CurrentLifeWeight float64
}

// Recompute recalculates meritScore, penaltyScore, netKarma, and
// weightedKarmaScore on the profile from its current balances.
func (c Calculator) Recompute(p *domain.KarmaProfile, source CategorySource) {
	var merit, penalty float64

	for key, amount := range p.Balances {
		if amount == 0 {
			continue
		}
		catName, severity := splitKey(key)
		category, ok := source.Category(catName)
		if !ok {
			continue
		}
		switch category.Polarity {
		case domain.PolarityPositive:
			merit += amount * category.Weight
		case domain.PolarityNegative:
			penalty += amount * category.Weight * category.Multiplier(severity)
		}
	}

	p.MeritScore = merit
	p.PenaltyScore = penalty
	p.NetKarma = merit - penalty
	p.WeightedKarmaScore = c.weightedScore(p, source)
}

// weightedScore folds the advanced, cross-life categories into the score:
// each contributes with its own catalog weight on top of the current life's
// netKarma.
func (c Calculator) weightedScore(p *domain.KarmaProfile, source CategorySource) float64 {
	currentWeight := c.CurrentLifeWeight
	if currentWeight == 0 {
		currentWeight = 1
	}
	score := currentWeight * p.NetKarma

	if cat, ok := source.Category(categoryAccumulatedPast); ok {
		score += cat.Weight * p.Balance(categoryAccumulatedPast, domain.SeverityNone)
	}
	if cat, ok := source.Category(categoryAncestralDebt); ok {
		score -= cat.Weight * p.Balance(categoryAncestralDebt, domain.SeverityNone)
	}
	return score
}

// SeededKarma returns the net karma an identity inherited at rebirth:
// the accumulated-past balance minus the ancestral-debt balance.
func SeededKarma(p *domain.KarmaProfile) float64 {
	return p.Balance(categoryAccumulatedPast, domain.SeverityNone) - p.Balance(categoryAncestralDebt, domain.SeverityNone)
}
