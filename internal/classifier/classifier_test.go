package classifier

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

type stubCounter struct {
	count int
	err   error
}

func (s stubCounter) CountRecentActions(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (int, error) {
	return s.count, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClassifier(t *testing.T, recent RecentActionCounter) *Classifier {
	t.Helper()
	return New(NewProvider(DefaultCatalog()), recent, Config{}, nil, testLogger())
}

func TestClassify_MeritAction(t *testing.T) {
	c := newTestClassifier(t, stubCounter{})

	cls, err := c.Classify(context.Background(), uuid.New(), "charity", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Category.Name != "dana" {
		t.Errorf("category = %q, want dana", cls.Category.Name)
	}
	if cls.BaseDelta != 5 {
		t.Errorf("base delta = %v, want 5", cls.BaseDelta)
	}
	if cls.Miss {
		t.Error("known action flagged as miss")
	}
}

func TestClassify_UnknownActionIsNeutralMiss(t *testing.T) {
	c := newTestClassifier(t, stubCounter{})

	cls, err := c.Classify(context.Background(), uuid.New(), "juggling", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cls.Miss {
		t.Fatal("expected classification miss")
	}
	if cls.Category == nil || cls.Category.Name != CategoryNeutral {
		t.Errorf("miss category = %v, want neutral", cls.Category)
	}
	if cls.BaseDelta != 0 {
		t.Errorf("miss base delta = %v, want 0", cls.BaseDelta)
	}
}

func TestClassify_PunitiveListingWins(t *testing.T) {
	// "sacrifice" appears in both the merit and punitive tables; the
	// punitive entry must dominate.
	c := newTestClassifier(t, stubCounter{})

	cls, err := c.Classify(context.Background(), uuid.New(), "sacrifice", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Category.Name != "himsa" {
		t.Errorf("category = %q, want himsa", cls.Category.Name)
	}
	if cls.Category.Polarity != domain.PolarityNegative {
		t.Errorf("polarity = %q, want negative", cls.Category.Polarity)
	}
}

func TestClassify_EscalatesRepeatedOffense(t *testing.T) {
	// One prior theft within the window bumps medium to major.
	c := newTestClassifier(t, stubCounter{count: 1})

	cls, err := c.Classify(context.Background(), uuid.New(), "theft", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Severity != domain.SeverityMajor {
		t.Errorf("severity = %q, want major", cls.Severity)
	}
	if cls.Escalated != 1 {
		t.Errorf("escalated = %d, want 1", cls.Escalated)
	}
}

func TestClassify_EscalationCapsAtMaha(t *testing.T) {
	c := newTestClassifier(t, stubCounter{count: 10})

	cls, err := c.Classify(context.Background(), uuid.New(), "theft", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Severity != domain.SeverityMaha {
		t.Errorf("severity = %q, want maha", cls.Severity)
	}
	if cls.Escalated != 2 {
		t.Errorf("escalated = %d, want 2 (medium -> major -> maha)", cls.Escalated)
	}
}

func TestClassify_NoEscalationForMerit(t *testing.T) {
	c := newTestClassifier(t, stubCounter{count: 5})

	cls, err := c.Classify(context.Background(), uuid.New(), "charity", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Escalated != 0 {
		t.Errorf("merit action escalated %d tiers", cls.Escalated)
	}
	if cls.Severity != domain.SeverityNone {
		t.Errorf("severity = %q, want none", cls.Severity)
	}
}

func TestClassify_NilCounterDisablesEscalation(t *testing.T) {
	c := newTestClassifier(t, nil)

	cls, err := c.Classify(context.Background(), uuid.New(), "theft", domain.RoleSeeker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Severity != domain.SeverityMedium {
		t.Errorf("severity = %q, want medium", cls.Severity)
	}
}

func TestDefaultCatalog_AllActionsResolve(t *testing.T) {
	cat := DefaultCatalog()
	for _, name := range cat.Actions() {
		spec, ok := cat.Action(name)
		if !ok {
			t.Fatalf("listed action %q not resolvable", name)
		}
		if _, ok := cat.Category(spec.Category); !ok {
			t.Errorf("action %q maps to unknown category %q", name, spec.Category)
		}
	}
}

func TestReloadCatalog_SwapsActiveCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
version: 7
categories:
  - name: punya
    polarity: positive
    weight: 1.0
actions:
  - name: planting-trees
    category: punya
    base_delta: 4
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	provider := NewProvider(DefaultCatalog())
	c := New(provider, nil, Config{}, nil, testLogger())

	if _, ok := provider.Catalog().Action("planting-trees"); ok {
		t.Fatal("new action present before reload")
	}
	if err := c.ReloadCatalog(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := provider.Catalog().Version; got != 7 {
		t.Errorf("version = %d, want 7", got)
	}
	if _, ok := provider.Catalog().Action("planting-trees"); !ok {
		t.Error("reloaded action missing")
	}

	// A broken file leaves the active catalog untouched.
	if err := os.WriteFile(path, []byte(":\nnot yaml"), 0600); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	if err := c.ReloadCatalog(path); err == nil {
		t.Fatal("expected error for malformed catalog")
	}
	if got := provider.Catalog().Version; got != 7 {
		t.Errorf("version after failed reload = %d, want 7", got)
	}
}

func TestProviderActions_TrackReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
version: 2
categories:
  - name: punya
    polarity: positive
    weight: 1.0
actions:
  - name: planting-trees
    category: punya
    base_delta: 4
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	provider := NewProvider(DefaultCatalog())
	for _, action := range provider.Actions() {
		if action == "planting-trees" {
			t.Fatal("new action listed before reload")
		}
	}

	if _, err := provider.Reload(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Consumers of the action space (the predictor's recommendation policy)
	// must see the reloaded list, not the boot-time snapshot.
	actions := provider.Actions()
	if len(actions) != 1 || actions[0] != "planting-trees" {
		t.Errorf("actions after reload = %v, want [planting-trees]", actions)
	}
}
