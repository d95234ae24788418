package sessionrepo

import "errors"

var (
	// ErrNotFound indicates the requested session does not exist (or expired).
	ErrNotFound = errors.New("onboarding session not found")

	// ErrAlreadyExists indicates a session already exists with the provided ID.
	ErrAlreadyExists = errors.New("onboarding session already exists")

	// ErrVersionConflict indicates the stored session moved past the version being updated.
	ErrVersionConflict = errors.New("onboarding session version conflict")
)
