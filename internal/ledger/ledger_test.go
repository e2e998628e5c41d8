package ledger

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jkaninda/samsara/internal/classifier"
	"github.com/jkaninda/samsara/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProfile() *domain.KarmaProfile {
	return &domain.KarmaProfile{
		Role:      domain.RoleSeeker,
		State:     domain.StateAlive,
		Balances:  make(map[string]float64),
		CreatedAt: time.Now().UTC(),
	}
}

func catalog() *classifier.Catalog { return classifier.DefaultCatalog() }

func mustCategory(t *testing.T, name string) *domain.TokenCategory {
	t.Helper()
	cat, ok := catalog().Category(name)
	if !ok {
		t.Fatalf("category %q missing from default catalog", name)
	}
	return cat
}

func TestApply_MeritCreditsAndRaisesCounter(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")

	balance, delta := l.Apply(p, dana, domain.SeverityNone, 5, p.CreatedAt)
	if balance != 5 {
		t.Errorf("balance = %v, want 5", balance)
	}
	want := 5 * dana.Weight
	if delta != want {
		t.Errorf("delta = %v, want %v", delta, want)
	}
	if p.DepletionCounter != want {
		t.Errorf("depletion counter = %v, want %v", p.DepletionCounter, want)
	}
}

func TestApply_PenaltyLowersCounterBySeverity(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	paapa := mustCategory(t, "paapa")

	_, delta := l.Apply(p, paapa, domain.SeverityMedium, 6, p.CreatedAt)
	want := -6 * paapa.Weight * paapa.Multiplier(domain.SeverityMedium)
	if delta != want {
		t.Errorf("delta = %v, want %v", delta, want)
	}
	if p.DepletionCounter != want {
		t.Errorf("depletion counter = %v, want %v", p.DepletionCounter, want)
	}
}

func TestApply_NegativeAmountClampedToZero(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")

	balance, delta := l.Apply(p, dana, domain.SeverityNone, -3, p.CreatedAt)
	if balance != 0 || delta != 0 {
		t.Errorf("balance, delta = %v, %v, want 0, 0", balance, delta)
	}
}

func TestApply_NeutralCategoryHasZeroDelta(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	neutral := mustCategory(t, classifier.CategoryNeutral)

	balance, delta := l.Apply(p, neutral, domain.SeverityNone, 4, p.CreatedAt)
	if balance != 4 {
		t.Errorf("balance = %v, want 4", balance)
	}
	if delta != 0 {
		t.Errorf("neutral delta = %v, want 0", delta)
	}
	if p.DepletionCounter != 0 {
		t.Errorf("depletion counter = %v, want 0", p.DepletionCounter)
	}
}

func TestDebit_ClampsAtZero(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	paapa := mustCategory(t, "paapa")
	l.Apply(p, paapa, domain.SeverityMinor, 4, p.CreatedAt)

	balance, healed := l.Debit(p, paapa, domain.SeverityMinor, 10)
	if balance != 0 {
		t.Errorf("balance = %v, want 0", balance)
	}
	want := 4 * paapa.Weight * paapa.Multiplier(domain.SeverityMinor)
	if healed != want {
		t.Errorf("healed = %v, want %v", healed, want)
	}
}

func TestDebit_NegativeCategoryHealsCounter(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	paapa := mustCategory(t, "paapa")
	_, delta := l.Apply(p, paapa, domain.SeverityMinor, 4, p.CreatedAt)

	_, healed := l.Debit(p, paapa, domain.SeverityMinor, 4)
	if healed != -delta {
		t.Errorf("healed = %v, want %v", healed, -delta)
	}
	if p.DepletionCounter != 0 {
		t.Errorf("depletion counter = %v, want 0 after full remediation", p.DepletionCounter)
	}
}

func TestDebit_PositiveCategoryLeavesCounter(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")
	_, delta := l.Apply(p, dana, domain.SeverityNone, 5, p.CreatedAt)

	l.Debit(p, dana, domain.SeverityNone, 5)
	if p.DepletionCounter != delta {
		t.Errorf("depletion counter = %v, want %v (reversal must not debit it)", p.DepletionCounter, delta)
	}
}

func TestZeroBalance(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	himsa := mustCategory(t, "himsa")
	l.Apply(p, himsa, domain.SeverityMajor, 8, p.CreatedAt)

	healed := l.ZeroBalance(p, himsa, domain.SeverityMajor)
	if got := p.Balance("himsa", domain.SeverityMajor); got != 0 {
		t.Errorf("balance = %v, want 0", got)
	}
	want := 8 * himsa.Weight * himsa.Multiplier(domain.SeverityMajor)
	if healed != want {
		t.Errorf("healed = %v, want %v", healed, want)
	}
}

func TestDecayAll_WholeUnitsWithCarryover(t *testing.T) {
	unit := 24 * time.Hour
	l := New(unit, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")
	l.Apply(p, dana, domain.SeverityNone, 100, p.CreatedAt)

	// 2.5 units elapsed: two units decay now, the half unit carries over.
	now := p.CreatedAt.Add(60 * time.Hour)
	l.DecayAll(p, catalog(), now)

	key := domain.BalanceKey("dana", domain.SeverityNone)
	want := 100 * math.Pow(1-dana.DecayRate, 2)
	if got := p.Balances[key]; math.Abs(got-want) > 1e-9 {
		t.Errorf("balance = %v, want %v", got, want)
	}
	if got := p.LastDecayedAt[key]; !got.Equal(p.CreatedAt.Add(48 * time.Hour)) {
		t.Errorf("last decayed at = %v, want created+48h", got)
	}

	// The remaining half unit joins the next elapsed half unit.
	l.DecayAll(p, catalog(), now.Add(12*time.Hour))
	want = 100 * math.Pow(1-dana.DecayRate, 3)
	if got := p.Balances[key]; math.Abs(got-want) > 1e-9 {
		t.Errorf("after carryover balance = %v, want %v", got, want)
	}
}

func TestDecayAll_NoElapsedUnitIsNoop(t *testing.T) {
	l := New(24*time.Hour, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")
	l.Apply(p, dana, domain.SeverityNone, 10, p.CreatedAt)

	l.DecayAll(p, catalog(), p.CreatedAt.Add(time.Hour))
	if got := p.Balance("dana", domain.SeverityNone); got != 10 {
		t.Errorf("balance = %v, want 10 (no whole unit elapsed)", got)
	}
}

func TestDecayAll_LateFundedBucketDecaysFromCreditTime(t *testing.T) {
	unit := 24 * time.Hour
	l := New(unit, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")

	// First credit lands long after the profile was born; the bucket's decay
	// clock starts at the credit, not at profile creation.
	credited := p.CreatedAt.Add(20 * 24 * time.Hour)
	l.Apply(p, dana, domain.SeverityNone, 100, credited)

	l.DecayAll(p, catalog(), credited.Add(unit))
	want := 100 * (1 - dana.DecayRate)
	if got := p.Balance("dana", domain.SeverityNone); math.Abs(got-want) > 1e-9 {
		t.Errorf("balance = %v, want %v (one unit of decay since the credit)", got, want)
	}
}

func TestDecayAll_ZeroRateCategoryNeverDecays(t *testing.T) {
	// rnam (unpaid debt) has a zero decay rate.
	l := New(24*time.Hour, nil, testLogger())
	p := newProfile()
	rnam := mustCategory(t, "rnam")
	l.Apply(p, rnam, domain.SeverityMinor, 5, p.CreatedAt)

	l.DecayAll(p, catalog(), p.CreatedAt.Add(1000*time.Hour))
	if got := p.Balance("rnam", domain.SeverityMinor); got != 5 {
		t.Errorf("balance = %v, want 5", got)
	}
}

func TestDecayAll_NegativeDecayHealsCounter(t *testing.T) {
	l := New(24*time.Hour, nil, testLogger())
	p := newProfile()
	paapa := mustCategory(t, "paapa")
	_, delta := l.Apply(p, paapa, domain.SeverityMinor, 100, p.CreatedAt)

	l.DecayAll(p, catalog(), p.CreatedAt.Add(10*24*time.Hour))
	if p.DepletionCounter <= delta {
		t.Errorf("depletion counter = %v, want healed above %v", p.DepletionCounter, delta)
	}
	if p.DepletionCounter > 0 {
		t.Errorf("depletion counter = %v, cannot exceed zero from decay alone", p.DepletionCounter)
	}
}

func TestRecompute_RoundTrip(t *testing.T) {
	l := New(0, nil, testLogger())
	p := newProfile()
	dana := mustCategory(t, "dana")
	paapa := mustCategory(t, "paapa")
	l.Apply(p, dana, domain.SeverityNone, 10, p.CreatedAt)
	l.Apply(p, paapa, domain.SeverityMedium, 3, p.CreatedAt)

	calc := Calculator{}
	calc.Recompute(p, catalog())

	wantMerit := 10 * dana.Weight
	wantPenalty := 3 * paapa.Weight * paapa.Multiplier(domain.SeverityMedium)
	if math.Abs(p.MeritScore-wantMerit) > 1e-9 {
		t.Errorf("merit = %v, want %v", p.MeritScore, wantMerit)
	}
	if math.Abs(p.PenaltyScore-wantPenalty) > 1e-9 {
		t.Errorf("penalty = %v, want %v", p.PenaltyScore, wantPenalty)
	}
	if math.Abs(p.NetKarma-(wantMerit-wantPenalty)) > 1e-9 {
		t.Errorf("net = %v, want %v", p.NetKarma, wantMerit-wantPenalty)
	}
}

func TestRecompute_WeightedFoldsAdvancedCategories(t *testing.T) {
	p := newProfile()
	p.Balances[domain.BalanceKey(categoryAccumulatedPast, domain.SeverityNone)] = 20
	p.Balances[domain.BalanceKey(categoryAncestralDebt, domain.SeverityNone)] = 10

	calc := Calculator{CurrentLifeWeight: 0.7}
	calc.Recompute(p, catalog())

	past := mustCategory(t, categoryAccumulatedPast)
	debt := mustCategory(t, categoryAncestralDebt)
	want := past.Weight*20 - debt.Weight*10
	if math.Abs(p.WeightedKarmaScore-want) > 1e-9 {
		t.Errorf("weighted = %v, want %v", p.WeightedKarmaScore, want)
	}
}

func TestSeededKarma(t *testing.T) {
	p := newProfile()
	p.Balances[domain.BalanceKey(categoryAccumulatedPast, domain.SeverityNone)] = 12
	p.Balances[domain.BalanceKey(categoryAncestralDebt, domain.SeverityNone)] = 5

	if got := SeededKarma(p); got != 7 {
		t.Errorf("seeded karma = %v, want 7", got)
	}
}
