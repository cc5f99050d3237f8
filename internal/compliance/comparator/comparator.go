// Package comparator checks extracted certificate coverages against the
// requirement rows of a template. It is pure: no I/O, no clock, no errors.
package comparator

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/dustin/go-humanize"
	"github.com/smallbiznis/covercheck/internal/coverage/domain"
)

const (
	msgAdditionalInsuredMissing = "Additional Insured not found"
	msgWaiverMissing            = "Waiver of Subrogation not found"
	gapSeparator                = "; "
)

// Outcome holds one result per requirement, in requirement order. Result IDs
// and timestamps are left for the caller to assign on persist.
type Outcome struct {
	Results        []domain.ComplianceResult
	AllRequiredMet bool
}

type matchKey struct {
	coverage domain.CoverageType
	limit    domain.LimitType
}

// Compare evaluates every requirement against the extracted coverages of one
// certificate. Coverage identity is an exact (coverage_type, limit_type) match.
// When several coverages share that key the highest limit_amount wins, nil
// ranking lowest; ties keep the earliest in extraction order.
func Compare(certificateID snowflake.ID, requirements []domain.CoverageRequirement, extracted []domain.ExtractedCoverage) Outcome {
	best := make(map[matchKey]*domain.ExtractedCoverage, len(extracted))
	for _, i := range extractionOrder(extracted) {
		e := &extracted[i]
		key := matchKey{coverage: e.CoverageType, limit: e.LimitType}
		if current, ok := best[key]; !ok || outranks(e, current) {
			best[key] = e
		}
	}

	out := Outcome{
		Results:        make([]domain.ComplianceResult, 0, len(requirements)),
		AllRequiredMet: true,
	}
	for _, r := range requirements {
		res := evaluate(certificateID, r, best[matchKey{coverage: r.CoverageType, limit: r.LimitType}])
		if r.IsRequired && res.Status != domain.ResultMet {
			out.AllRequiredMet = false
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func evaluate(certificateID snowflake.ID, r domain.CoverageRequirement, e *domain.ExtractedCoverage) domain.ComplianceResult {
	res := domain.ComplianceResult{
		CertificateID: certificateID,
		RequirementID: r.ID,
	}
	if e == nil {
		res.Status = domain.ResultMissing
		return res
	}

	coverageID := e.ID
	res.ExtractedCoverageID = &coverageID

	gaps := make([]string, 0, 3)
	if !limitSatisfied(r, e) {
		gaps = append(gaps, limitGap(r, e))
	}
	if r.RequiresAdditionalInsured && !e.AdditionalInsuredListed {
		gaps = append(gaps, msgAdditionalInsuredMissing)
	}
	if r.RequiresWaiverOfSubrogation && !e.WaiverOfSubrogation {
		gaps = append(gaps, msgWaiverMissing)
	}

	if len(gaps) == 0 {
		res.Status = domain.ResultMet
		return res
	}
	gap := strings.Join(gaps, gapSeparator)
	res.Status = domain.ResultNotMet
	res.GapDescription = &gap
	return res
}

// limitSatisfied is non-strict: an amount equal to the minimum passes.
func limitSatisfied(r domain.CoverageRequirement, e *domain.ExtractedCoverage) bool {
	if r.LimitType == domain.LimitStatutory || r.MinimumLimit == nil {
		return true
	}
	return e.LimitAmount != nil && *e.LimitAmount >= *r.MinimumLimit
}

func limitGap(r domain.CoverageRequirement, e *domain.ExtractedCoverage) string {
	subject := r.CoverageType.Label()
	if label := r.LimitType.Label(); label != "" {
		subject += " " + label
	}
	if e.LimitAmount == nil {
		return fmt.Sprintf("%s limit not found (required %s)", subject, dollars(*r.MinimumLimit))
	}
	return fmt.Sprintf("%s limit %s is below required %s", subject, dollars(*e.LimitAmount), dollars(*r.MinimumLimit))
}

func dollars(v int64) string {
	if v < 0 {
		return "-$" + humanize.Comma(-v)
	}
	return "$" + humanize.Comma(v)
}

// outranks reports whether candidate should replace current. Candidates are
// visited in extraction order, so equal amounts keep the earlier row.
func outranks(candidate, current *domain.ExtractedCoverage) bool {
	switch {
	case candidate.LimitAmount == nil:
		return false
	case current.LimitAmount == nil:
		return true
	default:
		return *candidate.LimitAmount > *current.LimitAmount
	}
}

// extractionOrder returns indexes of extracted sorted by position, then id,
// leaving the caller's slice untouched.
func extractionOrder(extracted []domain.ExtractedCoverage) []int {
	idx := make([]int, len(extracted))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if c := cmp.Compare(extracted[a].Position, extracted[b].Position); c != 0 {
			return c
		}
		return cmp.Compare(extracted[a].ID, extracted[b].ID)
	})
	return idx
}
