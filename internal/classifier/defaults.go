package classifier

import "github.com/jkaninda/samsara/internal/domain"

// standardTiers is the multiplier progression shared by most tiered categories.
func standardTiers() map[domain.Severity]float64 {
	return map[domain.Severity]float64{
		domain.SeverityMinor:  1,
		domain.SeverityMedium: 2,
		domain.SeverityMajor:  4,
		domain.SeverityMaha:   8,
	}
}

// DefaultCatalog returns the built-in classification table, used when no
// catalog file is configured. Versions loaded from disk replace it wholesale.
func DefaultCatalog() *Catalog {
	file := &catalogFile{
		Version: 1,
		Categories: []categoryFile{
			// Merit categories.
			{Name: "punya", Polarity: domain.PolarityPositive, Weight: 1.0, DecayRate: 0.010},
			{Name: "seva", Polarity: domain.PolarityPositive, Weight: 1.2, DecayRate: 0.005},
			{Name: "dana", Polarity: domain.PolarityPositive, Weight: 1.1, DecayRate: 0.008},
			{Name: "tapas", Polarity: domain.PolarityPositive, Weight: 1.5, DecayRate: 0.002},
			{Name: "jnana", Polarity: domain.PolarityPositive, Weight: 1.3, DecayRate: 0.004},

			// Penalty categories. All tiered.
			{Name: "paapa", Polarity: domain.PolarityNegative, Weight: 1.0, DecayRate: 0.002, SeverityMultipliers: standardTiers()},
			{Name: "himsa", Polarity: domain.PolarityNegative, Weight: 1.5, DecayRate: 0.001, SeverityMultipliers: standardTiers()},
			{Name: "asatya", Polarity: domain.PolarityNegative, Weight: 1.2, DecayRate: 0.003, SeverityMultipliers: standardTiers()},
			// Unpaid debts do not decay on their own.
			{Name: "rnam", Polarity: domain.PolarityNegative, Weight: 1.3, DecayRate: 0, SeverityMultipliers: standardTiers()},

			// Advanced categories carried across lifetimes. Negative carryover
			// decays more slowly than positive.
			{Name: CategoryAccumulatedPast, Polarity: domain.PolarityNeutral, Weight: 0.5, DecayRate: 0.002},
			{Name: CategoryAncestralDebt, Polarity: domain.PolarityNeutral, Weight: 0.75, DecayRate: 0.0005},
		},
		Actions: []ActionSpec{
			// Meritorious actions.
			{Name: "charity", Category: "dana", BaseDelta: 5},
			{Name: "almsgiving", Category: "dana", BaseDelta: 3},
			{Name: "service", Category: "seva", BaseDelta: 4},
			{Name: "caregiving", Category: "seva", BaseDelta: 5},
			{Name: "meditation", Category: "tapas", BaseDelta: 3},
			{Name: "fasting-observance", Category: "tapas", BaseDelta: 5},
			{Name: "teaching", Category: "jnana", BaseDelta: 4},
			{Name: "scripture-study", Category: "jnana", BaseDelta: 2},
			{Name: "truthfulness", Category: "punya", BaseDelta: 2},
			{Name: "pilgrimage", Category: "punya", BaseDelta: 6},
			{Name: "sacrifice", Category: "punya", BaseDelta: 4},

			// Punitive actions.
			{Name: "theft", Category: "paapa", BaseDelta: 6, Severity: domain.SeverityMedium},
			{Name: "betrayal", Category: "paapa", BaseDelta: 7, Severity: domain.SeverityMajor},
			{Name: "adharma", Category: "paapa", BaseDelta: 5, Severity: domain.SeverityMedium},
			{Name: "violence", Category: "himsa", BaseDelta: 8, Severity: domain.SeverityMajor},
			{Name: "cruelty", Category: "himsa", BaseDelta: 5, Severity: domain.SeverityMedium},
			{Name: "killing", Category: "himsa", BaseDelta: 12, Severity: domain.SeverityMaha},
			{Name: "deceit", Category: "asatya", BaseDelta: 4, Severity: domain.SeverityMinor},
			{Name: "slander", Category: "asatya", BaseDelta: 3, Severity: domain.SeverityMinor},
			{Name: "broken-vow", Category: "rnam", BaseDelta: 5, Severity: domain.SeverityMedium},
			{Name: "unpaid-debt", Category: "rnam", BaseDelta: 4, Severity: domain.SeverityMinor},
			// Listed in both tables in the source material; punitive wins.
			{Name: "sacrifice", Category: "himsa", BaseDelta: 3, Severity: domain.SeverityMinor},
		},
	}

	c, err := buildCatalog(file)
	if err != nil {
		// The built-in table is internally consistent; a failure here is a bug.
		panic(err)
	}
	return c
}
