package extraction

import (
	"encoding/json"
	"testing"
	"time"

	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) RawResult {
	t.Helper()
	var raw RawResult
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestTranslateAppliesDefaults(t *testing.T) {
	raw := decode(t, `{
		"success": true,
		"insured_name": "  Acme Plumbing, LLC ",
		"additional_insured_entities": "Landlord Co, , Property Manager Inc",
		"coverages": [
			{"coverage_type": "CGL", "limit_type": "Each Occurrence", "limit_amount": "$1,000,000",
			 "effective_date": "01/01/2026", "expiration_date": "2027-01-01",
			 "additional_insured": "X", "waiver_of_subrogation": "Y", "confidence": "HIGH"},
			{"coverage_type": "Workers Compensation", "limit_type": "Statutory", "limit_amount": null,
			 "expiration_date": "not a date", "additional_insured": "no"},
			{"coverage_type": "Boat Insurance", "limit_amount": 5},
			{"coverage_type": "Umbrella", "limit_type": "something else", "limit_amount": "5M", "confidence": "sure"}
		]
	}`)

	out := Translate(raw)
	assert.Equal(t, "Acme Plumbing, LLC", out.InsuredName)
	assert.Equal(t, []string{"Landlord Co", "Property Manager Inc"}, out.Entities)
	assert.Equal(t, 1, out.Dropped)
	require.Len(t, out.Coverages, 3)

	gl := out.Coverages[0]
	assert.Equal(t, coveragedomain.GeneralLiability, gl.CoverageType)
	assert.Equal(t, coveragedomain.LimitPerOccurrence, gl.LimitType)
	require.NotNil(t, gl.LimitAmount)
	assert.Equal(t, int64(1_000_000), *gl.LimitAmount)
	require.NotNil(t, gl.EffectiveDate)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *gl.EffectiveDate)
	assert.True(t, gl.AdditionalInsuredListed)
	assert.True(t, gl.WaiverOfSubrogation)
	assert.Equal(t, coveragedomain.ConfidenceHigh, gl.ConfidenceFlag)
	assert.Equal(t, 0, gl.Position)

	wc := out.Coverages[1]
	assert.Equal(t, coveragedomain.WorkersCompensation, wc.CoverageType)
	assert.Equal(t, coveragedomain.LimitStatutory, wc.LimitType)
	assert.Nil(t, wc.LimitAmount)
	assert.Nil(t, wc.ExpirationDate)
	assert.False(t, wc.AdditionalInsuredListed)
	assert.Equal(t, coveragedomain.ConfidenceLow, wc.ConfidenceFlag)

	umbrella := out.Coverages[2]
	assert.Equal(t, coveragedomain.UmbrellaExcessLiability, umbrella.CoverageType)
	assert.Equal(t, coveragedomain.LimitNone, umbrella.LimitType)
	require.NotNil(t, umbrella.LimitAmount)
	assert.Equal(t, int64(5_000_000), *umbrella.LimitAmount)
	assert.Equal(t, 2, umbrella.Position)
}

func TestAmountParsing(t *testing.T) {
	cases := []struct {
		in   any
		want *int64
	}{
		{in: float64(2000000), want: ptr(2_000_000)},
		{in: "$1,000,000", want: ptr(1_000_000)},
		{in: "1M", want: ptr(1_000_000)},
		{in: "1.5 MM", want: ptr(1_500_000)},
		{in: "500k", want: ptr(500_000)},
		{in: "USD 250,000", want: ptr(250_000)},
		{in: "statutory", want: nil},
		{in: float64(-5), want: nil},
		{in: true, want: nil},
		{in: nil, want: nil},
		{in: "", want: nil},
	}
	for _, tc := range cases {
		got := amountOf(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "%v", tc.in)
			continue
		}
		require.NotNil(t, got, "%v", tc.in)
		assert.Equal(t, *tc.want, *got, "%v", tc.in)
	}
}

func TestDateParsing(t *testing.T) {
	want := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-07-04", "07/04/2026", "7/4/2026", "07/04/26", "July 4, 2026", "Jul 4, 2026", "2026-07-04T13:00:00Z"} {
		got := dateOf(in)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got, in)
	}
	assert.Nil(t, dateOf("next summer"))
	assert.Nil(t, dateOf(float64(20260704)))
}

func TestBooleanParsing(t *testing.T) {
	for _, in := range []any{true, "yes", "Y", "x", "X", "true", float64(1)} {
		assert.True(t, boolOf(in), "%v", in)
	}
	for _, in := range []any{false, "no", "", "N", nil, float64(0), "maybe"} {
		assert.False(t, boolOf(in), "%v", in)
	}
}

func TestEntitiesFromArray(t *testing.T) {
	out := Translate(decode(t, `{"additional_insured_entities": ["Landlord Co", "  ", 42]}`))
	assert.Equal(t, []string{"Landlord Co", "42"}, out.Entities)
	assert.Empty(t, out.Coverages)
	assert.Zero(t, out.Dropped)
}

func ptr(v int64) *int64 { return &v }
