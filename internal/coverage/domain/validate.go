package domain

import (
	"fmt"

	"github.com/smallbiznis/covercheck/internal/apperror"
)

type requirementKey struct {
	coverage CoverageType
	limit    LimitType
}

// ValidateRequirements rejects requirement sets that cannot be persisted:
// unknown enums, negative minimums, and repeated (coverage_type, limit_type)
// pairs.
func ValidateRequirements(reqs []CoverageRequirement) error {
	seen := make(map[requirementKey]int, len(reqs))
	for i, r := range reqs {
		if !r.CoverageType.Valid() {
			return apperror.Validation("invalid_coverage_type",
				fmt.Sprintf("requirements[%d].coverage_type", i),
				fmt.Sprintf("unknown coverage type %q", r.CoverageType))
		}
		if !r.LimitType.Valid() {
			return apperror.Validation("invalid_limit_type",
				fmt.Sprintf("requirements[%d].limit_type", i),
				fmt.Sprintf("unknown limit type %q", r.LimitType))
		}
		if r.MinimumLimit != nil && *r.MinimumLimit < 0 {
			return apperror.Validation("invalid_minimum_limit",
				fmt.Sprintf("requirements[%d].minimum_limit", i),
				"minimum limit must not be negative")
		}
		key := requirementKey{coverage: r.CoverageType, limit: r.LimitType}
		if prev, dup := seen[key]; dup {
			return apperror.Validation("duplicate_requirement",
				fmt.Sprintf("requirements[%d]", i),
				fmt.Sprintf("%s %s duplicates requirements[%d]", r.CoverageType.Label(), limitLabelOrAny(r.LimitType), prev))
		}
		seen[key] = i
	}
	return nil
}

func limitLabelOrAny(l LimitType) string {
	if l == LimitNone {
		return "(no limit type)"
	}
	return l.Label()
}
