package extraction

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
)

// Result is a translated extraction. Coverages carry no ids; Dropped counts
// rows whose coverage type could not be recognized.
type Result struct {
	InsuredName string
	Entities    []string
	Coverages   []coveragedomain.ExtractedCoverage
	Dropped     int
}

var coverageAliases = map[string]coveragedomain.CoverageType{
	"gl":                           coveragedomain.GeneralLiability,
	"cgl":                          coveragedomain.GeneralLiability,
	"general liability":            coveragedomain.GeneralLiability,
	"commercial general liability": coveragedomain.GeneralLiability,
	"general_liability":            coveragedomain.GeneralLiability,

	"al":                   coveragedomain.AutomobileLiability,
	"auto":                 coveragedomain.AutomobileLiability,
	"auto liability":       coveragedomain.AutomobileLiability,
	"automobile liability": coveragedomain.AutomobileLiability,
	"business auto":        coveragedomain.AutomobileLiability,
	"commercial auto":      coveragedomain.AutomobileLiability,
	"automobile_liability": coveragedomain.AutomobileLiability,

	"wc":                    coveragedomain.WorkersCompensation,
	"workers comp":          coveragedomain.WorkersCompensation,
	"workers compensation":  coveragedomain.WorkersCompensation,
	"workers' compensation": coveragedomain.WorkersCompensation,
	"workers_compensation":  coveragedomain.WorkersCompensation,

	"el":                   coveragedomain.EmployersLiability,
	"employers liability":  coveragedomain.EmployersLiability,
	"employers' liability": coveragedomain.EmployersLiability,
	"employers_liability":  coveragedomain.EmployersLiability,

	"umbrella":                  coveragedomain.UmbrellaExcessLiability,
	"excess":                    coveragedomain.UmbrellaExcessLiability,
	"umbrella liability":        coveragedomain.UmbrellaExcessLiability,
	"excess liability":          coveragedomain.UmbrellaExcessLiability,
	"umbrella/excess liability": coveragedomain.UmbrellaExcessLiability,
	"umbrella_excess_liability": coveragedomain.UmbrellaExcessLiability,

	"e&o":                          coveragedomain.ProfessionalLiabilityEO,
	"eo":                           coveragedomain.ProfessionalLiabilityEO,
	"errors and omissions":         coveragedomain.ProfessionalLiabilityEO,
	"errors & omissions":           coveragedomain.ProfessionalLiabilityEO,
	"professional liability":       coveragedomain.ProfessionalLiabilityEO,
	"professional liability (e&o)": coveragedomain.ProfessionalLiabilityEO,
	"professional_liability_eo":    coveragedomain.ProfessionalLiabilityEO,

	"property":               coveragedomain.PropertyInlandMarine,
	"inland marine":          coveragedomain.PropertyInlandMarine,
	"property/inland marine": coveragedomain.PropertyInlandMarine,
	"property_inland_marine": coveragedomain.PropertyInlandMarine,

	"pollution":                       coveragedomain.PollutionLiability,
	"pollution liability":             coveragedomain.PollutionLiability,
	"contractors pollution liability": coveragedomain.PollutionLiability,
	"pollution_liability":             coveragedomain.PollutionLiability,

	"liquor":           coveragedomain.LiquorLiability,
	"liquor liability": coveragedomain.LiquorLiability,
	"liquor_liability": coveragedomain.LiquorLiability,

	"cyber":                              coveragedomain.CyberLiability,
	"cyber liability":                    coveragedomain.CyberLiability,
	"network security/privacy liability": coveragedomain.CyberLiability,
	"cyber_liability":                    coveragedomain.CyberLiability,
}

var limitAliases = map[string]coveragedomain.LimitType{
	"per occurrence":  coveragedomain.LimitPerOccurrence,
	"each occurrence": coveragedomain.LimitPerOccurrence,
	"occurrence":      coveragedomain.LimitPerOccurrence,
	"each claim":      coveragedomain.LimitPerOccurrence,
	"per_occurrence":  coveragedomain.LimitPerOccurrence,

	"aggregate":         coveragedomain.LimitAggregate,
	"general aggregate": coveragedomain.LimitAggregate,
	"agg":               coveragedomain.LimitAggregate,

	"combined single limit": coveragedomain.LimitCombinedSingleLimit,
	"combined single":       coveragedomain.LimitCombinedSingleLimit,
	"csl":                   coveragedomain.LimitCombinedSingleLimit,
	"combined_single_limit": coveragedomain.LimitCombinedSingleLimit,

	"statutory":        coveragedomain.LimitStatutory,
	"statutory limits": coveragedomain.LimitStatutory,
	"per statute":      coveragedomain.LimitStatutory,

	"per person":               coveragedomain.LimitPerPerson,
	"each person":              coveragedomain.LimitPerPerson,
	"bodily injury per person": coveragedomain.LimitPerPerson,
	"per_person":               coveragedomain.LimitPerPerson,

	"per accident":  coveragedomain.LimitPerAccident,
	"each accident": coveragedomain.LimitPerAccident,
	"per_accident":  coveragedomain.LimitPerAccident,
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	time.RFC3339,
}

var spaces = regexp.MustCompile(`\s+`)

// Translate converts a raw reply into typed rows. It never fails: each field
// falls back to a documented default.
func Translate(raw RawResult) Result {
	out := Result{
		InsuredName: strings.TrimSpace(stringOf(raw.InsuredName)),
		Entities:    stringList(raw.Entities),
	}

	for _, row := range raw.Coverages {
		coverageType, ok := coverageTypeOf(row["coverage_type"])
		if !ok {
			out.Dropped++
			continue
		}
		out.Coverages = append(out.Coverages, coveragedomain.ExtractedCoverage{
			CoverageType:              coverageType,
			LimitType:                 limitTypeOf(row["limit_type"]),
			LimitAmount:               amountOf(row["limit_amount"]),
			CarrierName:               strings.TrimSpace(stringOf(row["carrier_name"])),
			PolicyNumber:              strings.TrimSpace(stringOf(row["policy_number"])),
			EffectiveDate:             dateOf(row["effective_date"]),
			ExpirationDate:            dateOf(row["expiration_date"]),
			AdditionalInsuredListed:   boolOf(row["additional_insured"]),
			AdditionalInsuredEntities: stringList(row["additional_insured_entities"]),
			WaiverOfSubrogation:       boolOf(row["waiver_of_subrogation"]),
			ConfidenceFlag:            confidenceOf(row["confidence"]),
			Position:                  len(out.Coverages),
		})
	}
	return out
}

func normalizeKey(v any) string {
	s := strings.ToLower(strings.TrimSpace(stringOf(v)))
	return spaces.ReplaceAllString(s, " ")
}

func coverageTypeOf(v any) (coveragedomain.CoverageType, bool) {
	key := normalizeKey(v)
	if key == "" {
		return "", false
	}
	if t, ok := coverageAliases[key]; ok {
		return t, true
	}
	if t := coveragedomain.CoverageType(key); t.Valid() {
		return t, true
	}
	return "", false
}

func limitTypeOf(v any) coveragedomain.LimitType {
	key := normalizeKey(v)
	if t, ok := limitAliases[key]; ok {
		return t
	}
	if t := coveragedomain.LimitType(key); t != coveragedomain.LimitNone && t.Valid() {
		return t
	}
	return coveragedomain.LimitNone
}

// amountOf accepts JSON numbers and strings like "$1,000,000", "1M", "500k".
// Anything else, including negative values, is nil.
func amountOf(v any) *int64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, ok := parseAmount(x)
		if !ok {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64/2 {
		return nil
	}
	amount := int64(math.Round(f))
	return &amount
}

func parseAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("$", "", ",", "", "usd", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "mm"):
		multiplier, s = 1_000_000, strings.TrimSuffix(s, "mm")
	case strings.HasSuffix(s, "m"):
		multiplier, s = 1_000_000, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		multiplier, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "b"):
		multiplier, s = 1_000_000_000, strings.TrimSuffix(s, "b")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * multiplier, true
}

func dateOf(v any) *time.Time {
	s := strings.TrimSpace(stringOf(v))
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func boolOf(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "x", "1", "checked":
			return true
		}
	}
	return false
}

func confidenceOf(v any) coveragedomain.ConfidenceFlag {
	flag := coveragedomain.ConfidenceFlag(normalizeKey(v))
	if flag.Valid() {
		return flag
	}
	return coveragedomain.ConfidenceLow
}

// stringList accepts a JSON array or a comma separated string. Blank items
// are skipped.
func stringList(v any) []string {
	var items []string
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			items = append(items, stringOf(item))
		}
	case []string:
		items = x
	case string:
		items = strings.Split(x, ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case nil:
		return ""
	default:
		return ""
	}
}
