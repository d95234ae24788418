package sessionrepo

import (
	"context"
	"testing"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
)

func TestRepo_GetReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	rec := domain.NewRecord()
	rec.SelectedCoverageIDs.Set([]domain.CoverageID{"c1"})
	now := time.Unix(100, 0).UTC()
	if err := r.Create(context.Background(), sessionrepo.Session{
		ID:        "s1",
		Record:    rec,
		Step:      domain.StepAccount,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := r.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	ids := got.Record.SelectedCoverageIDs.MustGet()
	ids[0] = "mutated"

	again, _ := r.Get(context.Background(), "s1")
	if again.Record.Coverages()[0] != "c1" {
		t.Fatalf("stored selection mutated: %v", again.Record.Coverages())
	}
}

func TestRepo_CreateRejectsEmptyID(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	if err := r.Create(context.Background(), sessionrepo.Session{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
