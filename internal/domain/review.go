package domain

import "sort"

// UnknownCoverageName labels a premium row whose coverage has no server-assigned name.
const UnknownCoverageName = "Unknown Coverage"

// CoveragePremiumRow is one line of the coverage premium breakdown shown for review.
type CoveragePremiumRow struct {
	ID      CoverageID `json:"id"`
	Name    string     `json:"name"`
	Premium float64    `json:"premium"`
}

// CoveragePremiumRows lists the server-assigned premium per coverage.
//
// Rows appear only when both coveragePremiums and coverageNames are present. Selected
// coverages come first in selection order; any other priced coverage follows by id.
func CoveragePremiumRows(r Record) []CoveragePremiumRow {
	premiums, okP := get(r.CoveragePremiums)
	names, okN := get(r.CoverageNames)
	if !okP || !okN {
		return []CoveragePremiumRow{}
	}

	out := make([]CoveragePremiumRow, 0, len(premiums))
	seen := make(map[CoverageID]bool, len(premiums))
	row := func(id CoverageID) CoveragePremiumRow {
		name := names[id]
		if name == "" {
			name = UnknownCoverageName
		}
		return CoveragePremiumRow{ID: id, Name: name, Premium: premiums[id]}
	}

	for _, id := range r.Coverages() {
		if _, ok := premiums[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, row(id))
	}

	rest := make([]CoverageID, 0)
	for id := range premiums {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, id := range rest {
		out = append(out, row(id))
	}
	return out
}
