package sessionrepo

import (
	"testing"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/testutil"
	portsessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
)

func TestContract_PostgresSessionRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunSessionRepo(t, func(t *testing.T) (portsessionrepo.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
