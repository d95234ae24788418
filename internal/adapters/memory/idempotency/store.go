package idempotency

import (
	"context"
	"slices"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
)

// Store keeps replay records in process memory until retention runs out.
// It is safe for concurrent use. Stored bodies are copied on the way in and out.
type Store struct {
	cache *gocache.Cache
}

// NewStore returns a store whose records expire after retention; zero keeps them.
func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		return &Store{cache: gocache.New(gocache.NoExpiration, 0)}
	}
	return &Store{cache: gocache.New(retention, retention)}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	v, ok := s.cache.Get(cacheKey(fp))
	if !ok {
		return idempotency.Record{}, false, nil
	}
	rec := v.(idempotency.Record)
	rec.Body = slices.Clone(rec.Body)
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	rec.Body = slices.Clone(rec.Body)
	s.cache.SetDefault(cacheKey(fp), rec)
	return nil
}

func (s *Store) Forget(ctx context.Context, session domain.SessionID) error {
	_ = ctx
	prefix := sessionPrefix(session)
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			s.cache.Delete(k)
		}
	}
	return nil
}

func sessionPrefix(session domain.SessionID) string {
	return string(session) + "\x00"
}

func cacheKey(fp idempotency.Fingerprint) string {
	return sessionPrefix(fp.Session) + strings.Join([]string{string(fp.Key), fp.Route, fp.BodyHash}, "\x00")
}
