package status

import (
	"time"

	"github.com/smallbiznis/covercheck/internal/coverage/domain"
)

const DefaultWarningWindow = 30 * 24 * time.Hour

type Input struct {
	HasConfirmedCertificate bool
	// MinExpiration is the earliest expiration date across the current
	// certificate's coverages; nil when none carried a date.
	MinExpiration  *time.Time
	AllRequiredMet bool
}

// Project derives the entity compliance status. Rules apply in order and the
// first match wins, so expiration always overrides the comparator verdict.
// Dates are compared as UTC calendar days: a policy expiring today is
// expiring_soon, not expired.
func Project(in Input, now time.Time, warningWindow time.Duration) domain.ComplianceStatus {
	if !in.HasConfirmedCertificate {
		return domain.StatusPending
	}

	if in.MinExpiration != nil {
		if warningWindow < 0 {
			warningWindow = 0
		}
		today := day(now)
		expires := day(*in.MinExpiration)
		switch {
		case expires.Before(today):
			return domain.StatusExpired
		case !expires.After(today.Add(warningWindow)):
			return domain.StatusExpiringSoon
		}
	}

	if in.AllRequiredMet {
		return domain.StatusCompliant
	}
	return domain.StatusNonCompliant
}

func MinExpiration(coverages []domain.ExtractedCoverage) *time.Time {
	var min *time.Time
	for i := range coverages {
		exp := coverages[i].ExpirationDate
		if exp == nil {
			continue
		}
		if min == nil || exp.Before(*min) {
			v := *exp
			min = &v
		}
	}
	return min
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
