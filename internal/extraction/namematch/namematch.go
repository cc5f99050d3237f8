// Package namematch compares business names as printed on certificates with
// the names entered for vendors and tenants.
package namematch

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Threshold is the minimum similarity treated as the same name.
const Threshold = 0.85

var corporateSuffixes = map[string]struct{}{
	"the": {}, "inc": {}, "incorporated": {}, "llc": {}, "llp": {}, "lp": {},
	"pllc": {}, "pc": {}, "plc": {}, "ltd": {}, "limited": {}, "co": {}, "company": {},
	"corp": {}, "corporation": {}, "dba": {}, "group": {}, "holdings": {},
}

// Normalize lowercases, replaces punctuation with spaces and drops corporate
// suffixes. "The Acme Co., LLC" becomes "acme".
func Normalize(name string) string {
	return strings.Join(tokens(name), " ")
}

func tokens(name string) []string {
	// Dots are dropped rather than split on so "L.L.C." reads as "llc".
	name = strings.NewReplacer("&", " and ", ".", "").Replace(strings.ToLower(name))
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := corporateSuffixes[f]; skip {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		// A name made only of suffixes keeps them.
		return fields
	}
	return out
}

// Similarity scores two names in [0, 1]: the better of the token-set ratio
// and the edit-distance ratio of the normalized forms.
func Similarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	na, nb := strings.Join(ta, " "), strings.Join(tb, " ")
	if na == nb {
		return 1
	}
	return max(tokenSetRatio(ta, tb), ratio(na, nb))
}

// Match reports whether a and b name the same business.
func Match(a, b string) bool {
	return Similarity(a, b) >= Threshold
}

// MatchAny reports whether name matches any candidate.
func MatchAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if Match(name, c) {
			return true
		}
	}
	return false
}

// tokenSetRatio compares the sorted shared tokens followed by each side's
// remaining tokens. Word order and repeats do not matter, but words found on
// only one side still count against the score.
func tokenSetRatio(a, b []string) float64 {
	setA, setB := uniqueSorted(a), uniqueSorted(b)

	var shared, onlyA, onlyB []string
	for _, t := range setA {
		if _, ok := slices.BinarySearch(setB, t); ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range setB {
		if _, ok := slices.BinarySearch(setA, t); !ok {
			onlyB = append(onlyB, t)
		}
	}

	withA := strings.Join(append(slices.Clone(shared), onlyA...), " ")
	withB := strings.Join(append(slices.Clone(shared), onlyB...), " ")
	return ratio(withA, withB)
}

func uniqueSorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// ratio is 1 - edit distance / longer length, over runes.
func ratio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
