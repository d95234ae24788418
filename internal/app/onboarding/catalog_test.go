package onboarding_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/observer"
)

// flakySource answers from a queue of results and counts calls.
type flakySource struct {
	mu      sync.Mutex
	calls   int
	results []sourceResult
}

type sourceResult struct {
	list []domain.Coverage
	err  error
}

func (s *flakySource) ListCoverages(context.Context) ([]domain.Coverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil, errors.New("no more results")
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.list, r.err
}

func (s *flakySource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var testCoverages = []domain.Coverage{{ID: "CASCO", Name: "Casco"}, {ID: "THEFT", Name: "Theft"}}

func TestCoverageCatalog_FetchesOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &flakySource{results: []sourceResult{{list: testCoverages}}}
	c := onboarding.NewCoverageCatalog(src, onboarding.CatalogOptions{})

	for i := 0; i < 3; i++ {
		if got := c.Options(ctx); len(got) != 2 || got[0].ID != "CASCO" {
			t.Fatalf("Options=%v", got)
		}
	}
	if src.Calls() != 1 {
		t.Fatalf("calls=%d, want 1", src.Calls())
	}

	if name, ok := c.Name(ctx, "THEFT"); !ok || name != "Theft" {
		t.Fatalf("Name=%q,%v", name, ok)
	}
	if _, ok := c.Name(ctx, "NOPE"); ok {
		t.Fatalf("unknown id resolved")
	}

	// Callers may modify what they get back.
	got := c.Options(ctx)
	got[0].Name = "mutated"
	if c.Options(ctx)[0].Name != "Casco" {
		t.Fatalf("catalog shares its list with callers")
	}
}

func TestCoverageCatalog_FailureIsSilentAndRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &flakySource{results: []sourceResult{{err: errors.New("catalog down")}, {list: testCoverages}}}
	obs := &recordingObserver{}
	c := onboarding.NewCoverageCatalog(src, onboarding.CatalogOptions{Observer: obs})

	got := c.Options(ctx)
	if got == nil || len(got) != 0 {
		t.Fatalf("failed fetch should yield an empty list, got %#v", got)
	}
	if k := obs.kinds(); len(k) != 1 || k[0] != observer.KindCatalogFetchFailed {
		t.Fatalf("events=%v", k)
	}

	if got := c.Options(ctx); len(got) != 2 {
		t.Fatalf("retry should succeed, got %v", got)
	}
	if src.Calls() != 2 {
		t.Fatalf("calls=%d, want 2", src.Calls())
	}
}

func TestCoverageCatalog_KeepsLastGoodListAfterExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &flakySource{results: []sourceResult{{list: testCoverages}, {err: errors.New("catalog down")}}}
	c := onboarding.NewCoverageCatalog(src, onboarding.CatalogOptions{TTL: 10 * time.Millisecond})

	if got := c.Options(ctx); len(got) != 2 {
		t.Fatalf("Options=%v", got)
	}
	time.Sleep(30 * time.Millisecond)

	if got := c.Options(ctx); len(got) != 2 || got[1].ID != "THEFT" {
		t.Fatalf("expected last good list, got %v", got)
	}
	if src.Calls() != 2 {
		t.Fatalf("calls=%d, want a refetch after expiry", src.Calls())
	}
}

func TestCoverageCatalog_ConcurrentCallers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &flakySource{results: []sourceResult{{list: testCoverages}}}
	c := onboarding.NewCoverageCatalog(src, onboarding.CatalogOptions{})

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := c.Options(ctx); len(got) != 2 {
				errs <- "short list"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
	if n := src.Calls(); n < 1 || n > 16 {
		t.Fatalf("calls=%d", n)
	}
}
