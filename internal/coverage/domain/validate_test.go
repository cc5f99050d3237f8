package domain

import (
	"encoding/json"
	"testing"

	"github.com/smallbiznis/covercheck/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v int64) *int64 { return &v }

func TestValidateRequirements(t *testing.T) {
	cases := []struct {
		name  string
		reqs  []CoverageRequirement
		code  string
		field string
	}{
		{
			name: "valid pair of GL rows",
			reqs: []CoverageRequirement{
				{CoverageType: GeneralLiability, LimitType: LimitPerOccurrence, MinimumLimit: amount(1_000_000)},
				{CoverageType: GeneralLiability, LimitType: LimitAggregate, MinimumLimit: amount(2_000_000)},
				{CoverageType: WorkersCompensation, LimitType: LimitStatutory},
			},
		},
		{
			name:  "unknown coverage",
			reqs:  []CoverageRequirement{{CoverageType: "boat", IsRequired: true}},
			code:  "invalid_coverage_type",
			field: "requirements[0].coverage_type",
		},
		{
			name: "unknown limit type",
			reqs: []CoverageRequirement{
				{CoverageType: GeneralLiability},
				{CoverageType: AutomobileLiability, LimitType: "per_mile"},
			},
			code:  "invalid_limit_type",
			field: "requirements[1].limit_type",
		},
		{
			name:  "negative minimum",
			reqs:  []CoverageRequirement{{CoverageType: CyberLiability, MinimumLimit: amount(-1)}},
			code:  "invalid_minimum_limit",
			field: "requirements[0].minimum_limit",
		},
		{
			name: "duplicate natural key",
			reqs: []CoverageRequirement{
				{CoverageType: GeneralLiability, LimitType: LimitPerOccurrence},
				{CoverageType: GeneralLiability, LimitType: LimitPerOccurrence},
			},
			code:  "duplicate_requirement",
			field: "requirements[1]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRequirements(tc.reqs)
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}
}

func TestLimitTypeJSONNull(t *testing.T) {
	b, err := json.Marshal(CoverageRequirement{CoverageType: GeneralLiability})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"limit_type":null`)

	var req CoverageRequirement
	require.NoError(t, json.Unmarshal([]byte(`{"coverage_type":"general_liability","limit_type":null}`), &req))
	assert.Equal(t, LimitNone, req.LimitType)

	require.NoError(t, json.Unmarshal([]byte(`{"limit_type":"aggregate"}`), &req))
	assert.Equal(t, LimitAggregate, req.LimitType)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "General Liability", GeneralLiability.Label())
	assert.Equal(t, "per occurrence", LimitPerOccurrence.Label())
	assert.Len(t, CoverageTypes(), 10)
	for _, c := range CoverageTypes() {
		assert.True(t, c.Valid(), c)
	}
}
