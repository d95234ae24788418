package catalog

import (
	"context"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Source is the remote, read-only coverage catalog.
// Implementations have no write side effects; results may be cached by the caller.
type Source interface {
	ListCoverages(ctx context.Context) ([]domain.Coverage, error)
}
