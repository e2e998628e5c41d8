package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/lifecycle"
)

func seedProfile(t *testing.T, s *Store) *domain.KarmaProfile {
	t.Helper()
	p := &domain.KarmaProfile{
		ID:       domain.NewID(),
		Role:     domain.RoleSeeker,
		State:    domain.StateAlive,
		Balances: map[string]float64{},
	}
	if err := s.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("seeding profile: %v", err)
	}
	return p
}

func TestGetProfile_ReturnsIsolatedCopy(t *testing.T) {
	s := NewStore()
	p := seedProfile(t, s)

	got, err := s.GetProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Balances["paapa"] = 99

	again, err := s.GetProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Balances["paapa"] != 0 {
		t.Error("caller mutation leaked into the store")
	}
}

func TestCommitAction_VersionConflict(t *testing.T) {
	s := NewStore()
	p := seedProfile(t, s)
	ctx := context.Background()

	load := func() *domain.KarmaProfile {
		got, err := s.GetProfile(ctx, p.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return got
	}
	outcome := func(profile *domain.KarmaProfile, reqID string) *engine.ActionOutcome {
		return &engine.ActionOutcome{
			Profile: profile,
			Record: &domain.ActionRecord{
				ID:         domain.NewID(),
				RequestID:  reqID,
				IdentityID: p.ID,
				Action:     "charity",
			},
		}
	}

	stale := load()
	fresh := load()

	if err := s.CommitAction(ctx, outcome(fresh, "req-1")); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	err := s.CommitAction(ctx, outcome(stale, "req-2"))
	if !errors.Is(err, domain.ErrConcurrentConflict) {
		t.Fatalf("error = %v, want ErrConcurrentConflict", err)
	}
}

func TestCommitAction_DuplicateRequestID(t *testing.T) {
	s := NewStore()
	p := seedProfile(t, s)
	ctx := context.Background()

	commit := func() error {
		profile, err := s.GetProfile(ctx, p.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return s.CommitAction(ctx, &engine.ActionOutcome{
			Profile: profile,
			Record: &domain.ActionRecord{
				ID:         domain.NewID(),
				RequestID:  "req-1",
				IdentityID: p.ID,
				Action:     "charity",
			},
		})
	}
	if err := commit(); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := commit(); !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("error = %v, want ErrDuplicateEvent", err)
	}
}

func TestCommitRebirth_Atomic(t *testing.T) {
	s := NewStore()
	p := seedProfile(t, s)
	ctx := context.Background()

	deceased, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	deceased.State = domain.StateDeceased
	successor := &domain.KarmaProfile{
		ID:           domain.NewID(),
		Role:         domain.RoleSeeker,
		State:        domain.StateAlive,
		Balances:     map[string]float64{},
		RebirthCount: 1,
	}
	event := &domain.LifecycleEvent{
		ID:            domain.NewID(),
		IdentityID:    p.ID,
		NewIdentityID: successor.ID,
		Loka:          domain.LokaMartya,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.CommitRebirth(ctx, &lifecycle.Rebirth{Deceased: deceased, Successor: successor, Event: event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("deceased: %v", err)
	}
	if got.State != domain.StateDeceased {
		t.Errorf("state = %q, want deceased", got.State)
	}
	if _, err := s.GetProfile(ctx, successor.ID); err != nil {
		t.Errorf("successor missing: %v", err)
	}
	events, err := s.ListLifecycleEvents(ctx, p.ID, time.Time{}, time.Now().UTC().Add(time.Minute))
	if err != nil || len(events) != 1 {
		t.Errorf("events = %v (%v), want one", events, err)
	}
}

func TestExpireIfOpen(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	open := &domain.AtonementPlan{
		ID:         domain.NewID(),
		IdentityID: uuid.New(),
		Status:     domain.PlanOpen,
		Deadline:   now.Add(-time.Hour),
	}
	if err := s.CreatePlan(ctx, open); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := s.ExpireIfOpen(ctx, open.ID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("open plan not expired")
	}

	// A second attempt loses: the plan is no longer open.
	ok, err = s.ExpireIfOpen(ctx, open.ID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("already-expired plan expired again")
	}

	got, err := s.GetPlan(ctx, open.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.PlanExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
}

func TestListDueOpenPlans_HonorsLimit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		plan := &domain.AtonementPlan{
			ID:         domain.NewID(),
			IdentityID: uuid.New(),
			Status:     domain.PlanOpen,
			Deadline:   now.Add(-time.Duration(i+1) * time.Hour),
		}
		if err := s.CreatePlan(ctx, plan); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// One future plan that must not be listed.
	future := &domain.AtonementPlan{
		ID:         domain.NewID(),
		IdentityID: uuid.New(),
		Status:     domain.PlanOpen,
		Deadline:   now.Add(time.Hour),
	}
	if err := s.CreatePlan(ctx, future); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := s.ListDueOpenPlans(ctx, now, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 3 {
		t.Errorf("due = %d plans, want 3", len(due))
	}
	for _, plan := range due {
		if plan.ID == future.ID {
			t.Error("future plan listed as due")
		}
	}
}

func TestCountRecentActions(t *testing.T) {
	s := NewStore()
	p := seedProfile(t, s)
	ctx := context.Background()

	for i, reqID := range []string{"r1", "r2", "r3"} {
		profile, err := s.GetProfile(ctx, p.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		action := "theft"
		if i == 2 {
			action = "charity"
		}
		if err := s.CommitAction(ctx, &engine.ActionOutcome{
			Profile: profile,
			Record: &domain.ActionRecord{
				ID:         domain.NewID(),
				RequestID:  reqID,
				IdentityID: p.ID,
				Action:     action,
				CreatedAt:  time.Now().UTC(),
			},
		}); err != nil {
			t.Fatalf("commit %s: %v", reqID, err)
		}
	}

	n, err := s.CountRecentActions(ctx, p.ID, "theft", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	n, err = s.CountRecentActions(ctx, p.ID, "theft", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0 outside the window", n)
	}
}
