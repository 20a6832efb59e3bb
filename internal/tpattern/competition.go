package tpattern

import "github.com/solatis/tpattern/internal/types"

// Maximal runs the completeness competition: it keeps the patterns whose type
// is not a proper leaf subsequence of any other pattern, in input order.
// Applying it to its own output returns the same set.
func Maximal(patterns []types.Pattern) []types.Pattern {
	var out []types.Pattern
	for i, candidate := range patterns {
		if !containedInOther(patterns, i) {
			out = append(out, candidate)
		}
	}
	return out
}

func containedInOther(patterns []types.Pattern, i int) bool {
	for j, other := range patterns {
		if j != i && other.Type.Contains(patterns[i].Type) {
			return true
		}
	}
	return false
}
