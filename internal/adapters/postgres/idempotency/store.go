package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
)

var errNilPool = errors.New("nil postgres pool")

// Store keeps step replays in the step_replays table. Rows older than the
// retention window are ignored on read and removed by Purge.
type Store struct {
	pool      *pgxpool.Pool
	retention time.Duration
	now       func() time.Time
}

// NewStore returns a store with the given retention; zero keeps rows forever.
func NewStore(pool *pgxpool.Pool, retention time.Duration) *Store {
	return &Store{
		pool:      pool,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) cutoff() time.Time {
	if s.retention <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.retention)
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errNilPool
	}
	var rec idempotency.Record
	err := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM step_replays
		WHERE session_id = $1 AND idempotency_key = $2 AND route = $3 AND body_hash = $4
		  AND created_at >= $5
	`, string(fp.Session), string(fp.Key), fp.Route, fp.BodyHash, s.cutoff()).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return idempotency.Record{}, false, nil
	case err != nil:
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errNilPool
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.Body == nil {
		rec.Body = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO step_replays (session_id, idempotency_key, route, body_hash, status_code, content_type, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, idempotency_key, route, body_hash) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    content_type = EXCLUDED.content_type,
		    body = EXCLUDED.body,
		    created_at = EXCLUDED.created_at
	`, string(fp.Session), string(fp.Key), fp.Route, fp.BodyHash, rec.StatusCode, rec.ContentType, rec.Body, rec.CreatedAt.UTC())
	return err
}

func (s *Store) Forget(ctx context.Context, session domain.SessionID) error {
	if s.pool == nil {
		return errNilPool
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM step_replays WHERE session_id = $1`, string(session))
	return err
}

// Purge deletes rows past the retention window and returns how many went.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, errNilPool
	}
	if s.retention <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM step_replays WHERE created_at < $1`, s.cutoff())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
