package catalog

import (
	"context"
	"testing"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/testutil"
	portcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
)

func TestContract_PostgresCoverageSource(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()

	for i, c := range contracttest.SeedCoverages {
		if _, err := pool.Exec(ctx, `INSERT INTO coverages (id, name, position) VALUES ($1,$2,$3)`, string(c.ID), c.Name, i); err != nil {
			t.Fatalf("seed coverage: %v", err)
		}
	}
	if _, err := pool.Exec(ctx, `INSERT INTO coverages (id, name, position, active) VALUES ('RETIRED','Retired',99,false)`); err != nil {
		t.Fatalf("seed inactive coverage: %v", err)
	}

	contracttest.RunCoverageSource(t, func(t *testing.T) (portcatalog.Source, func()) {
		t.Helper()
		return NewSource(pool), nil
	})
}
