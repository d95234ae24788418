package sessionrepo

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Session is the persisted snapshot of one wizard: the record plus the flow pointer.
// It is not an HTTP DTO.
type Session struct {
	ID domain.SessionID

	Record domain.Record
	Step   domain.StepName
	// ErrorMessage is the pending user-facing error; empty means none.
	ErrorMessage string

	// CompletedAt is set once the user confirms the final step; nil means in progress.
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version counts stored writes. Update succeeds only when it matches the stored
	// version, and the stored copy then carries Version+1.
	Version int64
}

// Repository stores wizard sessions.
type Repository interface {
	Create(ctx context.Context, s Session) error
	// Update replaces the snapshot written at s.Version, or fails with ErrVersionConflict.
	Update(ctx context.Context, s Session) error
	Get(ctx context.Context, id domain.SessionID) (Session, error)
}
