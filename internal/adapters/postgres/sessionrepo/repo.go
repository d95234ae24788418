package sessionrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
)

// Repo is a Postgres implementation of sessionrepo.Repository.
// The record is stored as a JSONB document using its wire field names.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, s sessionrepo.Session) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(s.ID))
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	record, err := json.Marshal(s.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO onboarding_sessions (
			id,
			record,
			step,
			error_message,
			completed_at,
			created_at,
			updated_at,
			version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		id,
		record,
		string(s.Step),
		s.ErrorMessage,
		utcPtr(s.CompletedAt),
		s.CreatedAt.UTC(),
		s.UpdatedAt.UTC(),
		s.Version,
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return sessionrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, s sessionrepo.Session) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(s.ID))
	if err != nil {
		return sessionrepo.ErrNotFound
	}
	record, err := json.Marshal(s.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE onboarding_sessions
		SET record = $2,
			step = $3,
			error_message = $4,
			completed_at = $5,
			updated_at = $6,
			version = version + 1
		WHERE id = $1 AND version = $7
	`,
		id,
		record,
		string(s.Step),
		s.ErrorMessage,
		utcPtr(s.CompletedAt),
		s.UpdatedAt.UTC(),
		s.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM onboarding_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return sessionrepo.ErrVersionConflict
	}
	return sessionrepo.ErrNotFound
}

func (r *Repo) Get(ctx context.Context, id domain.SessionID) (sessionrepo.Session, error) {
	if r.pool == nil {
		return sessionrepo.Session{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		// Not a UUID, so it cannot name a stored session.
		return sessionrepo.Session{}, sessionrepo.ErrNotFound
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id::text, record, step, error_message, completed_at, created_at, updated_at, version
		FROM onboarding_sessions
		WHERE id = $1
	`, uid)

	var (
		s           sessionrepo.Session
		sid, step   string
		record      []byte
		completedAt *time.Time
	)
	if err := row.Scan(&sid, &record, &step, &s.ErrorMessage, &completedAt, &s.CreatedAt, &s.UpdatedAt, &s.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sessionrepo.Session{}, sessionrepo.ErrNotFound
		}
		return sessionrepo.Session{}, err
	}
	if err := json.Unmarshal(record, &s.Record); err != nil {
		return sessionrepo.Session{}, fmt.Errorf("decode record for session %s: %w", sid, err)
	}
	s.ID = domain.SessionID(sid)
	s.Step = domain.StepName(step)
	s.CompletedAt = utcPtr(completedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
