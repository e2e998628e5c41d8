package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/appeal"
	"github.com/jkaninda/samsara/internal/atonement"
	"github.com/jkaninda/samsara/internal/classifier"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/ledger"
	"github.com/jkaninda/samsara/internal/lifecycle"
	"github.com/jkaninda/samsara/internal/predictor"
	"github.com/jkaninda/samsara/internal/storage/memory"
)

func newTestEngine(t *testing.T) (*engine.Engine, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	catalog := classifier.DefaultCatalog()
	provider := classifier.NewProvider(catalog)

	eng := engine.New(
		store,
		provider,
		classifier.New(provider, store, classifier.Config{}, nil, logger),
		ledger.New(0, nil, logger),
		ledger.Calculator{CurrentLifeWeight: 0.7},
		predictor.New(store, catalog, nil, predictor.Config{Epsilon: 1e-12}, nil, logger),
		atonement.NewEngine(atonement.Config{}, nil),
		lifecycle.NewMachine(lifecycle.Config{}, nil, logger),
		appeal.NewProcessor(),
		engine.Outbound{},
		engine.Config{},
		nil,
		nil,
		logger,
	)
	return eng, store
}

func TestHandleAction_MeritFlow(t *testing.T) {
	eng, store := newTestEngine(t)
	id := uuid.New()

	res, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID:  "req-1",
		IdentityID: id,
		Action:     "charity",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Duplicate {
		t.Fatal("first event flagged duplicate")
	}
	if res.Record.KarmaDelta <= 0 {
		t.Errorf("karma delta = %v, want positive", res.Record.KarmaDelta)
	}
	if res.Plan != nil {
		t.Error("merit action opened an atonement plan")
	}
	if res.RecommendedAction == "" {
		t.Error("no recommended action")
	}

	profile, err := store.GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	if profile.Role != domain.RoleSeeker {
		t.Errorf("new identity role = %q, want seeker", profile.Role)
	}
	if profile.NetKarma <= 0 {
		t.Errorf("net karma = %v, want positive", profile.NetKarma)
	}
}

func TestHandleAction_DuplicateReplay(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := uuid.New()
	ev := &engine.ActionEvent{RequestID: "req-1", IdentityID: id, Action: "charity"}

	first, err := eng.HandleAction(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := eng.HandleAction(context.Background(), ev)
	if err != nil {
		t.Fatalf("replay errored: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replay not flagged duplicate")
	}
	if second.Record.ID != first.Record.ID {
		t.Error("replay returned a different record")
	}
}

func TestHandleAction_PunitiveOpensPlan(t *testing.T) {
	eng, store := newTestEngine(t)
	id := uuid.New()

	res, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID:  "req-1",
		IdentityID: id,
		Action:     "theft",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Record.KarmaDelta >= 0 {
		t.Errorf("karma delta = %v, want negative", res.Record.KarmaDelta)
	}
	if res.Plan == nil {
		t.Fatal("punitive action opened no plan")
	}
	if res.Plan.Severity != domain.SeverityMedium {
		t.Errorf("plan severity = %q, want medium", res.Plan.Severity)
	}

	persisted, err := store.GetPlan(context.Background(), res.Plan.ID)
	if err != nil {
		t.Fatalf("plan not persisted: %v", err)
	}
	if persisted.Status != domain.PlanOpen {
		t.Errorf("plan status = %q, want open", persisted.Status)
	}
}

func TestHandleAction_UnknownActionIsNeutral(t *testing.T) {
	eng, _ := newTestEngine(t)

	res, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID:  "req-1",
		IdentityID: uuid.New(),
		Action:     "tightrope-walking",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Classification.Miss {
		t.Error("unknown action not flagged as miss")
	}
	if res.Record.KarmaDelta != 0 {
		t.Errorf("karma delta = %v, want 0", res.Record.KarmaDelta)
	}
	if res.Plan != nil {
		t.Error("neutral action opened a plan")
	}
}

func TestHandleAction_IntensityScalesTokenAmount(t *testing.T) {
	eng, _ := newTestEngine(t)

	base, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID: "req-1", IdentityID: uuid.New(), Action: "charity",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doubled, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID: "req-2", IdentityID: uuid.New(), Action: "charity", Intensity: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doubled.Record.TokenAmount != 2*base.Record.TokenAmount {
		t.Errorf("token amount = %v, want double %v", doubled.Record.TokenAmount, base.Record.TokenAmount)
	}
}

func TestHandleAction_DeathAndRebirth(t *testing.T) {
	eng, store := newTestEngine(t)
	id := uuid.New()

	// killing is maha himsa: 12 x 1.5 x 8 = -144, past the -100 threshold.
	res, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID:  "req-1",
		IdentityID: id,
		Action:     "killing",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rebirth == nil {
		t.Fatal("depletion past threshold produced no rebirth")
	}
	if res.Rebirth.Event.Loka != domain.LokaNaraka {
		t.Errorf("loka = %q, want naraka", res.Rebirth.Event.Loka)
	}

	deceased, err := store.GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("deceased profile: %v", err)
	}
	if deceased.State != domain.StateDeceased {
		t.Errorf("deceased state = %q", deceased.State)
	}

	successor, err := store.GetProfile(context.Background(), res.Rebirth.Successor.ID)
	if err != nil {
		t.Fatalf("successor profile: %v", err)
	}
	if successor.State != domain.StateAlive {
		t.Errorf("successor state = %q", successor.State)
	}
	if successor.RebirthCount != 1 {
		t.Errorf("rebirth count = %d, want 1", successor.RebirthCount)
	}
	if successor.AncestorID == nil || *successor.AncestorID != id {
		t.Error("successor lost its lineage")
	}

	// Further events for the deceased identity are refused.
	_, err = eng.HandleAction(context.Background(), &engine.ActionEvent{
		RequestID:  "req-2",
		IdentityID: id,
		Action:     "charity",
	})
	if !errors.Is(err, domain.ErrIdentityDeceased) {
		t.Fatalf("error = %v, want ErrIdentityDeceased", err)
	}
}

func TestSubmitProof_CompletionRedeemsOrigin(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := uuid.New()
	ctx := context.Background()

	act, err := eng.HandleAction(ctx, &engine.ActionEvent{
		RequestID: "act-1", IdentityID: id, Action: "theft",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	planID := act.Plan.ID

	var last *engine.ProofResult
	for i, task := range act.Plan.Tasks {
		last, err = eng.SubmitProof(ctx, &engine.ProofSubmission{
			RequestID: fmt.Sprintf("proof-%d", i),
			PlanID:    planID,
			Mechanism: task.Mechanism,
			Amount:    task.Required,
		})
		if err != nil {
			t.Fatalf("proof for %s: %v", task.Mechanism, err)
		}
	}
	if !last.Completed {
		t.Fatal("plan not completed")
	}
	if last.Redeemed != 1 {
		t.Errorf("redeemed = %v, want 1", last.Redeemed)
	}
	if last.Profile == nil {
		t.Fatal("completion returned no profile")
	}
	if got := last.Profile.Balance("paapa", domain.SeverityMedium); got != 0 {
		t.Errorf("origin balance = %v, want 0 after full redemption", got)
	}
	if math.Abs(last.Profile.NetKarma) > 1e-9 {
		t.Errorf("net karma = %v, want 0 after full redemption", last.Profile.NetKarma)
	}
}

func TestSubmitProof_PartialRedeemsNothing(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := uuid.New()
	ctx := context.Background()

	act, err := eng.HandleAction(ctx, &engine.ActionEvent{
		RequestID: "act-1", IdentityID: id, Action: "theft",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := eng.SubmitProof(ctx, &engine.ProofSubmission{
		RequestID: "proof-1",
		PlanID:    act.Plan.ID,
		Mechanism: domain.MechanismRepetition,
		Amount:    10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Redeemed != 0 {
		t.Errorf("redeemed = %v, want 0", res.Redeemed)
	}
	if res.Profile != nil {
		t.Error("partial progress touched the profile")
	}
}

func TestSubmitProof_DuplicateRequest(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	act, err := eng.HandleAction(ctx, &engine.ActionEvent{
		RequestID: "act-1", IdentityID: uuid.New(), Action: "theft",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := &engine.ProofSubmission{
		RequestID: "proof-1",
		PlanID:    act.Plan.ID,
		Mechanism: domain.MechanismRepetition,
		Amount:    10,
	}
	if _, err := eng.SubmitProof(ctx, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replay, err := eng.SubmitProof(ctx, sub)
	if err != nil {
		t.Fatalf("replay errored: %v", err)
	}
	if !replay.Duplicate {
		t.Fatal("replay not flagged duplicate")
	}
	// The credit was not applied twice.
	if got := replay.Plan.Task(domain.MechanismRepetition).Completed; got != 10 {
		t.Errorf("completed = %v, want 10", got)
	}
}

func TestSubmitProof_OverRedemptionRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	act, err := eng.HandleAction(ctx, &engine.ActionEvent{
		RequestID: "act-1", IdentityID: uuid.New(), Action: "theft",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	required := act.Plan.Task(domain.MechanismRepetition).Required
	_, err = eng.SubmitProof(ctx, &engine.ProofSubmission{
		RequestID: "proof-1",
		PlanID:    act.Plan.ID,
		Mechanism: domain.MechanismRepetition,
		Amount:    required + 1,
	})
	if !errors.Is(err, domain.ErrOverRedemption) {
		t.Fatalf("error = %v, want ErrOverRedemption", err)
	}
}

func TestFileAppeal_OneTierDown(t *testing.T) {
	eng, store := newTestEngine(t)
	id := uuid.New()
	ctx := context.Background()

	act, err := eng.HandleAction(ctx, &engine.ActionEvent{
		RequestID: "act-1", IdentityID: id, Action: "theft",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := eng.FileAppeal(ctx, &engine.AppealRequest{
		RequestID:      "appeal-1",
		IdentityID:     id,
		ActionRecordID: act.Record.ID,
		Reason:         "restitution already made",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Appeal.Status != domain.AppealAccepted {
		t.Fatalf("status = %q, want accepted", res.Appeal.Status)
	}
	if res.Appeal.RevisedSeverity != domain.SeverityMinor {
		t.Errorf("revised severity = %q, want minor", res.Appeal.RevisedSeverity)
	}
	if res.Plan == nil {
		t.Fatal("residual severity opened no reduced plan")
	}
	if res.Plan.Severity != domain.SeverityMinor {
		t.Errorf("residual plan severity = %q, want minor", res.Plan.Severity)
	}
	// Penalty shrank: the medium contribution was replaced by a minor one.
	if res.Profile.NetKarma <= act.Profile.NetKarma {
		t.Errorf("net karma = %v, want above %v after acceptance", res.Profile.NetKarma, act.Profile.NetKarma)
	}

	rec, err := store.GetAction(ctx, act.Record.ID)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !rec.Appealed {
		t.Error("record not flagged appealed")
	}

	// A second appeal against the same action is refused.
	_, err = eng.FileAppeal(ctx, &engine.AppealRequest{
		RequestID:      "appeal-2",
		IdentityID:     id,
		ActionRecordID: act.Record.ID,
		Reason:         "trying again",
	})
	if !errors.Is(err, domain.ErrAlreadyAppealed) {
		t.Fatalf("error = %v, want ErrAlreadyAppealed", err)
	}
}

func TestFileAppeal_MeritActionRefused(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := uuid.New()
	ctx := context.Background()

	act, err := eng.HandleAction(ctx, &engine.ActionEvent{
		RequestID: "act-1", IdentityID: id, Action: "charity",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = eng.FileAppeal(ctx, &engine.AppealRequest{
		RequestID:      "appeal-1",
		IdentityID:     id,
		ActionRecordID: act.Record.ID,
		Reason:         "was not charitable",
	})
	if !errors.Is(err, domain.ErrNotAppealable) {
		t.Fatalf("error = %v, want ErrNotAppealable", err)
	}
}

func TestHandleAction_ConcurrentSameIdentity(t *testing.T) {
	eng, store := newTestEngine(t)
	id := uuid.New()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.HandleAction(context.Background(), &engine.ActionEvent{
				RequestID:  fmt.Sprintf("req-%d", i),
				IdentityID: id,
				Action:     "truthfulness",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent event failed: %v", err)
		}
	}

	records, err := store.ListActions(context.Background(), id, time.Time{}, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("listing actions: %v", err)
	}
	if len(records) != n {
		t.Fatalf("action count = %d, want %d", len(records), n)
	}

	report, err := eng.AuditProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.Consistent {
		t.Errorf("aggregates drifted under concurrency: stored %v derived %v",
			report.StoredNetKarma, report.DerivedNetKarma)
	}
}

func TestAuditProfile_Consistent(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := uuid.New()
	ctx := context.Background()

	for i, action := range []string{"charity", "theft", "service"} {
		if _, err := eng.HandleAction(ctx, &engine.ActionEvent{
			RequestID:  fmt.Sprintf("req-%d", i),
			IdentityID: id,
			Action:     action,
		}); err != nil {
			t.Fatalf("action %s: %v", action, err)
		}
	}

	report, err := eng.AuditProfile(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ActionCount != 3 {
		t.Errorf("action count = %d, want 3", report.ActionCount)
	}
	if !report.Consistent {
		t.Errorf("stored %v drifted from derived %v", report.StoredNetKarma, report.DerivedNetKarma)
	}
}
