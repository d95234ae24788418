package idempotency

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// DefaultRetention bounds how long a step submission can be replayed.
const DefaultRetention = 24 * time.Hour

// Key is the caller-provided Idempotency-Key header.
type Key string

// Fingerprint identifies one step submission. An empty BodyHash addresses the record
// that pins a key to the first body it was used with.
type Fingerprint struct {
	Session  domain.SessionID
	Key      Key
	Route    string
	BodyHash string
}

// Record is a stored response, replayed verbatim for a retried submission.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store keeps replayable responses per session. Put overwrites.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
	// Forget drops every record kept for session.
	Forget(ctx context.Context, session domain.SessionID) error
}
