package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// Step validation uses it so a whitespace-only name counts as missing.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
