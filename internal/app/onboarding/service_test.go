package onboarding_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	memclock "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/clock"
	memsessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/sessionrepo"
	memstepservice "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/stepservice"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/stepservice"
)

func newTestService(t *testing.T, steps stepservice.Service) (*onboarding.Service, *memclock.ManualClock) {
	t.Helper()
	clk := memclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	svc := onboarding.NewService(memsessionrepo.NewRepo(), steps, clk, onboarding.ControllerOptions{})
	n := 0
	svc.SetNewSessionIDForTest(func() domain.SessionID {
		n++
		return domain.SessionID("sess-" + string(rune('0'+n)))
	})
	return svc, clk
}

func requireAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *onboarding.Error
	if !errors.As(err, &ae) {
		t.Fatalf("err=%v, want *onboarding.Error", err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("err=%d/%s, want %d/%s", ae.Status, ae.Code, status, code)
	}
}

func TestService_StartAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, clk := newTestService(t, memstepservice.NewScripted())

	v, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.ID != "sess-1" || v.Step != domain.StepAccount || !v.IsFirstStep || v.ClientType != domain.ClientTypeUnset {
		t.Fatalf("view=%+v", v)
	}

	clk.Advance(time.Minute)
	if _, err := svc.ChangeClientType(ctx, v.ID, domain.ClientTypeBusiness); err != nil {
		t.Fatalf("ChangeClientType: %v", err)
	}
	got, err := svc.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ClientType != domain.ClientTypeBusiness || len(got.Steps) != 7 {
		t.Fatalf("view=%+v", got)
	}

	_, err = svc.Get(ctx, "missing")
	requireAppError(t, err, 404, "SESSION_NOT_FOUND")
	_, err = svc.Next(ctx, "missing")
	requireAppError(t, err, 404, "SESSION_NOT_FOUND")
}

func TestService_NextPersistsOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	steps := memstepservice.NewScripted(fragment(func(r *domain.Record) { r.AccID.Set("001") }))
	svc, _ := newTestService(t, steps)
	v, _ := svc.Start(ctx)

	res, err := svc.Next(ctx, v.ID)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if res.Result.Outcome != onboarding.OutcomeInvalid || res.View.ErrorMessage != onboarding.MsgSelectClientType {
		t.Fatalf("result=%+v", res)
	}
	got, _ := svc.Get(ctx, v.ID)
	if got.ErrorMessage != onboarding.MsgSelectClientType {
		t.Fatalf("error message not persisted: %+v", got)
	}

	if _, err := svc.ChangeClientType(ctx, v.ID, domain.ClientTypePerson); err != nil {
		t.Fatalf("ChangeClientType: %v", err)
	}
	for name, value := range map[string]string{"firstName": "Ana", "lastName": "Popescu"} {
		if _, err := svc.ChangeField(ctx, v.ID, onboarding.Input{Name: name, Value: value, Kind: onboarding.InputText}); err != nil {
			t.Fatalf("ChangeField(%s): %v", name, err)
		}
	}
	res, err = svc.Next(ctx, v.ID)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if res.Result.Outcome != onboarding.OutcomeAdvanced || res.View.Step != domain.StepVehicle || res.View.ErrorMessage != "" {
		t.Fatalf("result=%+v", res)
	}
	got, _ = svc.Get(ctx, v.ID)
	if got.Step != domain.StepVehicle || domain.StringValue(got.Record.AccID) != "001" {
		t.Fatalf("advance not persisted: %+v", got)
	}
}

func TestService_OverlappingNext_409(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	entered := make(chan struct{})
	releaseCall := make(chan struct{})
	steps := memstepservice.Func(func(context.Context, []byte) (domain.Record, error) {
		close(entered)
		<-releaseCall
		return domain.Record{}, nil
	})
	svc, _ := newTestService(t, steps)
	v, _ := svc.Start(ctx)
	if _, err := svc.ChangeClientType(ctx, v.ID, domain.ClientTypeBusiness); err != nil {
		t.Fatalf("ChangeClientType: %v", err)
	}
	if _, err := svc.ChangeField(ctx, v.ID, onboarding.Input{Name: "businessName", Value: "Acme", Kind: onboarding.InputText}); err != nil {
		t.Fatalf("ChangeField: %v", err)
	}

	type outcome struct {
		res onboarding.NextResult
		err error
	}
	done := make(chan outcome)
	go func() {
		res, err := svc.Next(ctx, v.ID)
		done <- outcome{res, err}
	}()
	<-entered

	_, err := svc.Next(ctx, v.ID)
	requireAppError(t, err, 409, "STEP_IN_PROGRESS")

	close(releaseCall)
	first := <-done
	if first.err != nil || first.res.View.Step != domain.StepDriver {
		t.Fatalf("first Next=%+v err=%v", first.res, first.err)
	}
}

func TestService_DoneLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, clk := newTestService(t, memstepservice.NewScripted())
	v, _ := svc.Start(ctx)

	_, err := svc.Done(ctx, v.ID)
	requireAppError(t, err, 409, "WIZARD_NOT_FINISHED")

	if _, err := svc.ChangeClientType(ctx, v.ID, domain.ClientTypePerson); err != nil {
		t.Fatalf("ChangeClientType: %v", err)
	}
	for name, value := range map[string]string{"firstName": "Ana", "lastName": "Pop"} {
		if _, err := svc.ChangeField(ctx, v.ID, onboarding.Input{Name: name, Value: value, Kind: onboarding.InputText}); err != nil {
			t.Fatalf("ChangeField: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := svc.Next(ctx, v.ID); err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
	}

	clk.Advance(time.Hour)
	completed, err := svc.Done(ctx, v.ID)
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if completed.CompletedAt == nil || !completed.CompletedAt.Equal(clk.Now()) || !completed.IsLastStep {
		t.Fatalf("view=%+v", completed)
	}

	clk.Advance(time.Hour)
	again, err := svc.Done(ctx, v.ID)
	if err != nil {
		t.Fatalf("second Done: %v", err)
	}
	if !again.CompletedAt.Equal(*completed.CompletedAt) {
		t.Fatalf("second Done changed completedAt")
	}

	_, err = svc.Next(ctx, v.ID)
	requireAppError(t, err, 409, "SESSION_COMPLETED")
	_, err = svc.ChangeCoverages(ctx, v.ID, []domain.CoverageID{"THEFT"})
	requireAppError(t, err, 409, "SESSION_COMPLETED")
	_, err = svc.Previous(ctx, v.ID)
	requireAppError(t, err, 409, "SESSION_COMPLETED")
}

func TestService_RejectedChangeIsNotPersisted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t, memstepservice.NewScripted())
	v, _ := svc.Start(ctx)

	_, err := svc.ChangeContractPeriod(ctx, v.ID, "36")
	requireAppError(t, err, 422, "VALIDATION_ERROR")

	got, _ := svc.Get(ctx, v.ID)
	if got.Record.ContractPeriod.MustGet() != domain.DefaultContractPeriod {
		t.Fatalf("contractPeriod=%v", got.Record.ContractPeriod)
	}

	if _, err := svc.ChangeContractPeriod(ctx, v.ID, domain.ContractPeriod24); err != nil {
		t.Fatalf("ChangeContractPeriod: %v", err)
	}
	got, _ = svc.Get(ctx, v.ID)
	if got.Record.ContractPeriod.MustGet() != domain.ContractPeriod24 {
		t.Fatalf("contractPeriod=%v", got.Record.ContractPeriod)
	}
}

func TestService_NextOutlivesCancelledRequest(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	steps := memstepservice.Func(func(ctx context.Context, _ []byte) (domain.Record, error) {
		cancel()
		select {
		case <-ctx.Done():
			return domain.Record{}, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
		var r domain.Record
		r.AccID.Set("001")
		return r, nil
	})
	svc, _ := newTestService(t, steps)
	v := startBusiness(t, svc)

	res, err := svc.Next(ctx, v.ID)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if res.Result.Outcome != onboarding.OutcomeAdvanced || res.View.ErrorMessage != "" {
		t.Fatalf("result=%+v", res)
	}
	got, err := svc.Get(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Step != domain.StepDriver || domain.StringValue(got.Record.AccID) != "001" {
		t.Fatalf("submission not persisted: step=%s accId=%q", got.Step, domain.StringValue(got.Record.AccID))
	}
}

// gatedRepo holds the next Update until released.
type gatedRepo struct {
	sessionrepo.Repository

	mu   sync.Mutex
	hold chan struct{}
	held chan struct{}
}

func (r *gatedRepo) arm() (held, release chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hold, r.held = make(chan struct{}), make(chan struct{})
	return r.held, r.hold
}

func (r *gatedRepo) Update(ctx context.Context, s sessionrepo.Session) error {
	r.mu.Lock()
	hold, held := r.hold, r.held
	r.hold, r.held = nil, nil
	r.mu.Unlock()
	if hold != nil {
		close(held)
		<-hold
	}
	return r.Repository.Update(ctx, s)
}

func TestService_NextWaitsForFieldChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &gatedRepo{Repository: memsessionrepo.NewRepo()}
	clk := memclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	svc := onboarding.NewService(repo, memstepservice.NewScripted(), clk, onboarding.ControllerOptions{})
	v := startBusiness(t, svc)

	held, release := repo.arm()
	changed := make(chan error, 1)
	go func() {
		_, err := svc.ChangeField(ctx, v.ID, onboarding.Input{Name: "registerOfCommerce", Value: "RC-1", Kind: onboarding.InputText})
		changed <- err
	}()
	<-held

	type outcome struct {
		res onboarding.NextResult
		err error
	}
	next := make(chan outcome, 1)
	go func() {
		res, err := svc.Next(ctx, v.ID)
		next <- outcome{res, err}
	}()

	select {
	case got := <-next:
		t.Fatalf("Next did not wait for the field change: %+v err=%v", got.res, got.err)
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	if err := <-changed; err != nil {
		t.Fatalf("ChangeField: %v", err)
	}
	got := <-next
	if got.err != nil || got.res.Result.Outcome != onboarding.OutcomeAdvanced {
		t.Fatalf("Next=%+v err=%v", got.res, got.err)
	}
	if domain.StringValue(got.res.View.Record.RegisterOfCommerce) != "RC-1" {
		t.Fatalf("Next ran on a stale snapshot: %+v", got.res.View.Record)
	}
}

func TestService_ConcurrentReplicaWriteIsAConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	shared := memsessionrepo.NewRepo()
	clk := memclock.NewManualClock(time.Unix(1700000000, 0).UTC())

	entered := make(chan struct{})
	releaseCall := make(chan struct{})
	steps := memstepservice.Func(func(context.Context, []byte) (domain.Record, error) {
		close(entered)
		<-releaseCall
		return domain.Record{}, nil
	})
	a := onboarding.NewService(shared, steps, clk, onboarding.ControllerOptions{})
	b := onboarding.NewService(shared, memstepservice.NewScripted(), clk, onboarding.ControllerOptions{})
	v := startBusiness(t, a)

	done := make(chan error, 1)
	go func() {
		_, err := a.Next(ctx, v.ID)
		done <- err
	}()
	<-entered

	if _, err := b.ChangeField(ctx, v.ID, onboarding.Input{Name: "businessName", Value: "Other", Kind: onboarding.InputText}); err != nil {
		t.Fatalf("ChangeField on second instance: %v", err)
	}
	close(releaseCall)

	requireAppError(t, <-done, 409, "SESSION_CONFLICT")
	got, _ := b.Get(ctx, v.ID)
	if domain.StringValue(got.Record.BusinessName) != "Other" || got.Step != domain.StepAccount {
		t.Fatalf("second instance's write lost: step=%s name=%q", got.Step, domain.StringValue(got.Record.BusinessName))
	}
}

func startBusiness(t *testing.T, svc *onboarding.Service) onboarding.View {
	t.Helper()
	ctx := context.Background()
	v, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.ChangeClientType(ctx, v.ID, domain.ClientTypeBusiness); err != nil {
		t.Fatalf("ChangeClientType: %v", err)
	}
	if _, err := svc.ChangeField(ctx, v.ID, onboarding.Input{Name: "businessName", Value: "Acme", Kind: onboarding.InputText}); err != nil {
		t.Fatalf("ChangeField: %v", err)
	}
	return v
}
