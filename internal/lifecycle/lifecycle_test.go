package lifecycle

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jkaninda/samsara/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func aliveProfile() *domain.KarmaProfile {
	return &domain.KarmaProfile{
		ID:       domain.NewID(),
		Role:     domain.RoleSeeker,
		State:    domain.StateAlive,
		Balances: map[string]float64{},
	}
}

func TestShouldTransition(t *testing.T) {
	m := NewMachine(Config{}, nil, testLogger())

	tests := []struct {
		name    string
		state   domain.ProfileState
		counter float64
		want    bool
	}{
		{"above threshold", domain.StateAlive, -99, false},
		{"at threshold", domain.StateAlive, -100, true},
		{"below threshold", domain.StateAlive, -250, true},
		{"already deceased", domain.StateDeceased, -250, false},
		{"positive counter", domain.StateAlive, 40, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := aliveProfile()
			p.State = tc.state
			p.DepletionCounter = tc.counter
			if got := m.ShouldTransition(p); got != tc.want {
				t.Errorf("ShouldTransition = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLokaFor_Banding(t *testing.T) {
	m := NewMachine(Config{}, nil, testLogger())

	tests := []struct {
		netKarma float64
		want     domain.Loka
	}{
		{200, domain.LokaSwarga},
		{108, domain.LokaSwarga},
		{107.9, domain.LokaMartya},
		{0, domain.LokaMartya},
		{-0.1, domain.LokaNaraka},
		{-500, domain.LokaNaraka},
	}
	for _, tc := range tests {
		if got := m.LokaFor(tc.netKarma); got != tc.want {
			t.Errorf("LokaFor(%v) = %q, want %q", tc.netKarma, got, tc.want)
		}
	}
}

func TestTransition_Carryover(t *testing.T) {
	m := NewMachine(Config{}, nil, testLogger())
	p := aliveProfile()
	p.MeritScore = 100
	p.PenaltyScore = 300
	p.NetKarma = -200
	p.DepletionCounter = -150
	now := time.Now().UTC()

	r, err := m.Transition(p, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Event.CarryoverPositive != 20 {
		t.Errorf("positive carryover = %v, want 20 (0.20 x 100)", r.Event.CarryoverPositive)
	}
	if r.Event.CarryoverNegative != 150 {
		t.Errorf("negative carryover = %v, want 150 (0.50 x 300)", r.Event.CarryoverNegative)
	}
	if got := r.SeededKarma(); got != -130 {
		t.Errorf("seeded karma = %v, want -130", got)
	}
	if r.Event.Loka != domain.LokaNaraka {
		t.Errorf("loka = %q, want naraka", r.Event.Loka)
	}
}

func TestTransition_SuccessorState(t *testing.T) {
	m := NewMachine(Config{}, nil, testLogger())
	p := aliveProfile()
	p.MeritScore = 1000
	p.NetKarma = 500
	p.DepletionCounter = -120
	p.RebirthCount = 2
	now := time.Now().UTC()

	r, err := m.Transition(p, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Deceased.State != domain.StateDeceased {
		t.Errorf("deceased state = %q", r.Deceased.State)
	}
	if r.Successor.State != domain.StateAlive {
		t.Errorf("successor state = %q", r.Successor.State)
	}
	if r.Successor.RebirthCount != 3 {
		t.Errorf("rebirth count = %d, want 3", r.Successor.RebirthCount)
	}
	if r.Successor.AncestorID == nil || *r.Successor.AncestorID != p.ID {
		t.Errorf("ancestor = %v, want %s", r.Successor.AncestorID, p.ID)
	}
	if r.Successor.DepletionCounter != 0 {
		t.Errorf("successor depletion counter = %v, want 0", r.Successor.DepletionCounter)
	}
	// 0.20 x 1000 = 200 seeded merit puts the successor on the householder rung.
	if r.Successor.Role != domain.RoleHouseholder {
		t.Errorf("successor role = %q, want householder", r.Successor.Role)
	}
	if r.Event.NewIdentityID != r.Successor.ID {
		t.Errorf("event successor id mismatch")
	}
}

func TestTransition_OriginalUnmutated(t *testing.T) {
	m := NewMachine(Config{}, nil, testLogger())
	p := aliveProfile()
	p.DepletionCounter = -150

	if _, err := m.Transition(p, time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State != domain.StateAlive {
		t.Error("transition mutated the caller's profile")
	}
}

func TestTransition_RejectsDeceased(t *testing.T) {
	m := NewMachine(Config{}, nil, testLogger())
	p := aliveProfile()
	p.State = domain.StateDeceased

	_, err := m.Transition(p, time.Now().UTC())
	if !errors.Is(err, domain.ErrLifecycleTransition) {
		t.Fatalf("error = %v, want ErrLifecycleTransition", err)
	}
}

func TestTransition_CustomThresholds(t *testing.T) {
	m := NewMachine(Config{DeathThreshold: -10, SwargaMin: 50, NarakaMax: -25}, nil, testLogger())

	p := aliveProfile()
	p.DepletionCounter = -10
	if !m.ShouldTransition(p) {
		t.Error("custom death threshold not honored")
	}
	if got := m.LokaFor(60); got != domain.LokaSwarga {
		t.Errorf("LokaFor(60) = %q, want swarga", got)
	}
	if got := m.LokaFor(-20); got != domain.LokaMartya {
		t.Errorf("LokaFor(-20) = %q, want martya", got)
	}
	if got := m.LokaFor(-30); got != domain.LokaNaraka {
		t.Errorf("LokaFor(-30) = %q, want naraka", got)
	}
}
