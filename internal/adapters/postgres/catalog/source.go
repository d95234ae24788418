package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Source reads the active coverages from the coverages table.
type Source struct {
	pool *pgxpool.Pool
}

func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

func (s *Source) ListCoverages(ctx context.Context) ([]domain.Coverage, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name
		FROM coverages
		WHERE active
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Coverage, error) {
		var c domain.Coverage
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}
