package namematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "acme", Normalize("The Acme Co., LLC"))
	assert.Equal(t, "smith and sons plumbing", Normalize("Smith & Sons Plumbing, Inc."))
	assert.Equal(t, "company", Normalize("Company"))
	assert.Equal(t, "", Normalize("  ,. "))
	assert.Equal(t, "acme plumbing", Normalize("Acme Plumbing, L.L.C."))
}

func TestMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{a: "Acme Plumbing LLC", b: "ACME PLUMBING, L.L.C.", want: true},
		{a: "Acme Plumbing", b: "Plumbing Acme Inc", want: true},
		{a: "Smith & Sons Roofing", b: "Smith and Sons Roofing Co", want: true},
		{a: "Northwind Traders", b: "Northwind Tradrs", want: true},
		{a: "Acme Plumbing", b: "Acme Plumbing Services of Texas", want: false},
		{a: "Acme", b: "Acme Roofing Holdings of Texas", want: false},
		{a: "J.R. Smith Roofing L.P.", b: "JR Smith Roofing", want: true},
		{a: "Acme Plumbing", b: "Zenith Electric", want: false},
		{a: "Blue Sky Cafe", b: "Red Sky Bakery", want: false},
		{a: "", b: "Acme", want: false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Match(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func TestMatchAny(t *testing.T) {
	assert.True(t, MatchAny("Landlord Holdings LLC", []string{"Property Manager Inc", "Landlord Holdings"}))
	assert.False(t, MatchAny("Landlord Holdings LLC", nil))
}

func TestSimilarityIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Acme Plumbing", "Acme Plumbing Services"},
		{"Northwind", "Northwind Traders"},
		{"Blue Sky", "Sky Blue Cafe"},
	}
	for _, p := range pairs {
		assert.InDelta(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), 1e-9)
	}
}

func TestSubsetNamesScoreBelowThreshold(t *testing.T) {
	assert.Less(t, Similarity("Acme", "Acme Roofing Holdings of Texas"), Threshold)
	assert.Less(t, Similarity("Northwind", "Northwind Traders International"), Threshold)
}
