package sessionrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
)

const keyPrefix = "onboarding:session:"

// Repo is a Redis implementation of sessionrepo.Repository. Each session is one JSON
// value; every write refreshes the TTL, so idle sessions expire and then read as
// not found.
type Repo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRepo stores sessions in client. A zero ttl keeps sessions forever.
func NewRepo(client redis.UniversalClient, ttl time.Duration) *Repo {
	return &Repo{client: client, ttl: ttl}
}

type document struct {
	ID           domain.SessionID `json:"id"`
	Record       domain.Record    `json:"record"`
	Step         domain.StepName  `json:"step"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Version      int64            `json:"version"`
}

func (r *Repo) Create(ctx context.Context, s sessionrepo.Session) error {
	if s.ID == "" {
		return sessionrepo.ErrAlreadyExists // treat empty ID as invalid
	}
	b, err := encode(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, key(s.ID), b, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return sessionrepo.ErrAlreadyExists
	}
	return nil
}

// Update writes s when the stored version still equals s.Version. WATCH turns a
// concurrent write between the check and the SET into ErrVersionConflict.
func (r *Repo) Update(ctx context.Context, s sessionrepo.Session) error {
	k := key(s.ID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return sessionrepo.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get session: %w", err)
		}
		var d document
		if err := json.Unmarshal(cur, &d); err != nil {
			return fmt.Errorf("decode session %s: %w", s.ID, err)
		}
		if d.Version != s.Version {
			return sessionrepo.ErrVersionConflict
		}
		s.Version++
		b, err := encode(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, b, r.ttl)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return sessionrepo.ErrVersionConflict
	}
	if err != nil && !errors.Is(err, sessionrepo.ErrNotFound) && !errors.Is(err, sessionrepo.ErrVersionConflict) {
		return fmt.Errorf("redis update session: %w", err)
	}
	return err
}

func (r *Repo) Get(ctx context.Context, id domain.SessionID) (sessionrepo.Session, error) {
	b, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sessionrepo.Session{}, sessionrepo.ErrNotFound
	}
	if err != nil {
		return sessionrepo.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var d document
	if err := json.Unmarshal(b, &d); err != nil {
		return sessionrepo.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sessionrepo.Session{
		ID:           d.ID,
		Record:       d.Record,
		Step:         d.Step,
		ErrorMessage: d.ErrorMessage,
		CompletedAt:  d.CompletedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Version:      d.Version,
	}, nil
}

func key(id domain.SessionID) string {
	return keyPrefix + string(id)
}

func encode(s sessionrepo.Session) ([]byte, error) {
	b, err := json.Marshal(document{
		ID:           s.ID,
		Record:       s.Record,
		Step:         s.Step,
		ErrorMessage: s.ErrorMessage,
		CompletedAt:  s.CompletedAt,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
		Version:      s.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return b, nil
}
