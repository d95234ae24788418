package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	catalogport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
	idempotencyport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
	sessionrepoport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
)

type CleanupFunc = func()

type SessionRepoFactory func(t *testing.T) (sessionrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type CoverageSourceFactory func(t *testing.T) (catalogport.Source, CleanupFunc)

// SeedCoverages is the list a CoverageSourceFactory must serve, in this order.
var SeedCoverages = []domain.Coverage{
	{ID: "CASCO", Name: "Casco"},
	{ID: "GLASS", Name: "Glass Breakage"},
	{ID: "THEFT", Name: "Theft"},
}

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Session:  domain.SessionID(uuid.NewString()),
		Route:    "/sessions/{sessionId}/next",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Fingerprints are scoped per session.
	other := fp
	other.Session = domain.SessionID(uuid.NewString())
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other session: ok=%v err=%v", ok, err)
	}

	// Forget drops only the named session.
	if err := store.Put(ctx, other, rec); err != nil {
		t.Fatalf("Put other session: %v", err)
	}
	reply := fp
	reply.BodyHash = "hash-def"
	if err := store.Put(ctx, reply, idempotencyport.Record{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("Put reply: %v", err)
	}
	if err := store.Forget(ctx, fp.Session); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	for _, gone := range []idempotencyport.Fingerprint{fp, reply} {
		if _, ok, err := store.Get(ctx, gone); err != nil || ok {
			t.Fatalf("Get after Forget %+v: ok=%v err=%v", gone, ok, err)
		}
	}
	if _, ok, err := store.Get(ctx, other); err != nil || !ok {
		t.Fatalf("Forget removed another session: ok=%v err=%v", ok, err)
	}
}

func RunSessionRepo(t *testing.T, newRepo SessionRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	id := domain.SessionID(uuid.NewString())

	rec := domain.NewRecord()
	rec.ClientType.Set(domain.ClientTypeBusiness)
	rec.BusinessName.Set("Acme SRL")
	rec.FirstName.SetNull()
	rec.BirthDate.Set(openapi_types.Date{Time: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)})
	rec.VehicleNumberOfPassengers.Set(5)
	rec.VehicleValue.Set(12500.5)
	rec.SelectedCoverageIDs.Set([]domain.CoverageID{"THEFT", "CASCO"})
	rec.CoveragePremiums.Set(map[domain.CoverageID]float64{"THEFT": 10.25})

	if _, err := repo.Get(ctx, id); !errors.Is(err, sessionrepoport.ErrNotFound) {
		t.Fatalf("Get missing err=%v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, sessionrepoport.Session{ID: id, Step: domain.StepAccount, CreatedAt: now, UpdatedAt: now}); !errors.Is(err, sessionrepoport.ErrNotFound) {
		t.Fatalf("Update missing err=%v, want ErrNotFound", err)
	}

	if err := repo.Create(ctx, sessionrepoport.Session{
		ID:        id,
		Record:    rec,
		Step:      domain.StepAccount,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, sessionrepoport.Session{ID: id, Step: domain.StepAccount, CreatedAt: now, UpdatedAt: now}); !errors.Is(err, sessionrepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate err=%v, want ErrAlreadyExists", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != id || got.Step != domain.StepAccount || got.ErrorMessage != "" || got.CompletedAt != nil {
		t.Fatalf("unexpected session: %#v", got)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps created=%s updated=%s", got.CreatedAt, got.UpdatedAt)
	}

	// Tri-state survives persistence: value, explicit null and unspecified stay distinct.
	r := got.Record
	if r.Type() != domain.ClientTypeBusiness || domain.StringValue(r.BusinessName) != "Acme SRL" {
		t.Fatalf("record values lost: %#v", r)
	}
	if !r.FirstName.IsSpecified() || !r.FirstName.IsNull() {
		t.Fatalf("firstName should stay explicit null")
	}
	if r.LastName.IsSpecified() {
		t.Fatalf("lastName should stay unspecified")
	}
	if bd := r.BirthDate.MustGet(); bd.Format("2006-01-02") != "1990-05-17" {
		t.Fatalf("birthDate=%s", bd)
	}
	if r.VehicleNumberOfPassengers.MustGet() != 5 || r.VehicleValue.MustGet() != 12500.5 {
		t.Fatalf("numbers lost: %#v", r)
	}
	if !r.VehicleIsNew.IsSpecified() || r.VehicleIsNew.MustGet() {
		t.Fatalf("vehicleIsNew should stay false")
	}
	if ids := r.Coverages(); len(ids) != 2 || ids[0] != "THEFT" || ids[1] != "CASCO" {
		t.Fatalf("coverage order lost: %v", ids)
	}
	if p := r.CoveragePremiums.MustGet(); p["THEFT"] != 10.25 {
		t.Fatalf("premiums=%v", p)
	}
	if r.CoverageNames.IsSpecified() {
		t.Fatalf("coverageNames should stay unspecified")
	}

	// Update replaces the snapshot.
	later := now.Add(time.Minute)
	got.Step = domain.StepDriver
	got.ErrorMessage = "Driver First Name and Last Name are required."
	got.Record.DriverFirstName.Set("Ion")
	got.CompletedAt = &later
	got.UpdatedAt = later
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if again.Step != domain.StepDriver || again.ErrorMessage != got.ErrorMessage {
		t.Fatalf("update lost: %#v", again)
	}
	if domain.StringValue(again.Record.DriverFirstName) != "Ion" {
		t.Fatalf("driverFirstName=%q", domain.StringValue(again.Record.DriverFirstName))
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(later) || !again.UpdatedAt.Equal(later) {
		t.Fatalf("completedAt=%v updatedAt=%s", again.CompletedAt, again.UpdatedAt)
	}
	if !again.CreatedAt.Equal(now) {
		t.Fatalf("createdAt changed: %s", again.CreatedAt)
	}

	// Writes are versioned: a snapshot read before the last write cannot overwrite it.
	if again.Version != got.Version+1 {
		t.Fatalf("version=%d, want %d", again.Version, got.Version+1)
	}
	stale := got
	stale.Step = domain.StepVehicle
	if err := repo.Update(ctx, stale); !errors.Is(err, sessionrepoport.ErrVersionConflict) {
		t.Fatalf("stale Update err=%v, want ErrVersionConflict", err)
	}
	if err := repo.Update(ctx, again); err != nil {
		t.Fatalf("Update at current version: %v", err)
	}
	latest, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after versioned update: %v", err)
	}
	if latest.Step != domain.StepDriver || latest.Version != again.Version+1 {
		t.Fatalf("step=%s version=%d", latest.Step, latest.Version)
	}
}

func RunCoverageSource(t *testing.T, newSource CoverageSourceFactory) {
	t.Helper()
	ctx := context.Background()

	src, cleanup := newSource(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	got, err := src.ListCoverages(ctx)
	if err != nil {
		t.Fatalf("ListCoverages: %v", err)
	}
	if len(got) != len(SeedCoverages) {
		t.Fatalf("coverages=%+v, want %+v", got, SeedCoverages)
	}
	for i := range got {
		if got[i] != SeedCoverages[i] {
			t.Fatalf("coverage[%d]=%+v, want %+v", i, got[i], SeedCoverages[i])
		}
	}

	// Callers may keep and modify the result.
	got[0].Name = "mutated"
	again, err := src.ListCoverages(ctx)
	if err != nil {
		t.Fatalf("ListCoverages again: %v", err)
	}
	if again[0].Name != SeedCoverages[0].Name {
		t.Fatalf("source shares its slice with callers")
	}
}
