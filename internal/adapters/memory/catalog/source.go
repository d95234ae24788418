package catalog

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/go-yaml/yaml"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// DefaultCoverages is the built-in list used when no catalog file is configured.
var DefaultCoverages = []domain.Coverage{
	{ID: "CASCO", Name: "Casco"},
	{ID: "THEFT", Name: "Theft"},
	{ID: "GLASS", Name: "Glass Breakage"},
	{ID: "ROADSIDE", Name: "Roadside Assistance"},
	{ID: "DRIVER_ACCIDENT", Name: "Driver Personal Accident"},
}

// Source is a static coverage catalog. It is safe for concurrent use.
type Source struct {
	coverages []domain.Coverage
	err       error
}

func NewSource(coverages []domain.Coverage) *Source {
	return &Source{coverages: slices.Clone(coverages)}
}

// NewFailingSource returns a source whose every fetch fails with err.
func NewFailingSource(err error) *Source {
	return &Source{err: err}
}

func (s *Source) ListCoverages(ctx context.Context) ([]domain.Coverage, error) {
	_ = ctx
	if s.err != nil {
		return nil, s.err
	}
	return slices.Clone(s.coverages), nil
}

type catalogFile struct {
	Coverages []domain.Coverage `yaml:"coverages"`
}

// LoadFile reads a YAML catalog:
//
//	coverages:
//	  - id: THEFT
//	    name: Theft
func LoadFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coverage catalog: %w", err)
	}
	defer f.Close()

	var cf catalogFile
	if err := yaml.NewDecoder(f).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode coverage catalog %s: %w", path, err)
	}
	for i, c := range cf.Coverages {
		if c.ID == "" {
			return nil, fmt.Errorf("coverage catalog %s: entry %d has no id", path, i)
		}
	}
	return NewSource(cf.Coverages), nil
}
