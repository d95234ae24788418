package onboarding

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/observer"
)

const coveragesKey = "coverages"

// CatalogOptions configures a CoverageCatalog.
type CatalogOptions struct {
	// TTL bounds how long a fetched list is reused. Zero keeps it for the catalog's lifetime.
	TTL      time.Duration
	Logger   *slog.Logger
	Observer observer.Observer
}

// CoverageCatalog is a read-through cache of the selectable coverages.
//
// A failed fetch is logged and never surfaces to the caller: Options keeps returning the
// last good list (initially empty) and the next call tries again.
type CoverageCatalog struct {
	source catalog.Source
	cache  *gocache.Cache
	group  singleflight.Group
	log    *slog.Logger
	obs    observer.Observer

	mu   sync.RWMutex
	last []domain.Coverage
}

func NewCoverageCatalog(source catalog.Source, opts CatalogOptions) *CoverageCatalog {
	ttl := opts.TTL
	cleanup := time.Minute
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	c := &CoverageCatalog{
		source: source,
		cache:  gocache.New(ttl, cleanup),
		log:    opts.Logger,
		obs:    opts.Observer,
		last:   []domain.Coverage{},
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.obs == nil {
		c.obs = observer.Nop{}
	}
	return c
}

// Options returns the coverage list. Concurrent misses share one fetch.
func (c *CoverageCatalog) Options(ctx context.Context) []domain.Coverage {
	if v, ok := c.cache.Get(coveragesKey); ok {
		return slices.Clone(v.([]domain.Coverage))
	}

	v, _, _ := c.group.Do(coveragesKey, func() (any, error) {
		list, err := c.source.ListCoverages(ctx)
		if err != nil {
			c.log.ErrorContext(ctx, "coverage catalog fetch failed", slog.Any("err", err))
			c.obs.Observe(ctx, observer.Event{Kind: observer.KindCatalogFetchFailed, Message: err.Error()})
			return c.lastGood(), nil
		}
		if list == nil {
			list = []domain.Coverage{}
		}
		list = slices.Clone(list)
		c.cache.SetDefault(coveragesKey, list)
		c.mu.Lock()
		c.last = list
		c.mu.Unlock()
		return list, nil
	})
	return slices.Clone(v.([]domain.Coverage))
}

// Name resolves a coverage id against the cached list.
func (c *CoverageCatalog) Name(ctx context.Context, id domain.CoverageID) (string, bool) {
	for _, cov := range c.Options(ctx) {
		if cov.ID == id {
			return cov.Name, true
		}
	}
	return "", false
}

func (c *CoverageCatalog) lastGood() []domain.Coverage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
