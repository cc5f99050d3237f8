package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type CoverageType string

const (
	GeneralLiability        CoverageType = "general_liability"
	AutomobileLiability     CoverageType = "automobile_liability"
	WorkersCompensation     CoverageType = "workers_compensation"
	EmployersLiability      CoverageType = "employers_liability"
	UmbrellaExcessLiability CoverageType = "umbrella_excess_liability"
	ProfessionalLiabilityEO CoverageType = "professional_liability_eo"
	PropertyInlandMarine    CoverageType = "property_inland_marine"
	PollutionLiability      CoverageType = "pollution_liability"
	LiquorLiability         CoverageType = "liquor_liability"
	CyberLiability          CoverageType = "cyber_liability"
)

var coverageLabels = map[CoverageType]string{
	GeneralLiability:        "General Liability",
	AutomobileLiability:     "Automobile Liability",
	WorkersCompensation:     "Workers Compensation",
	EmployersLiability:      "Employers Liability",
	UmbrellaExcessLiability: "Umbrella/Excess Liability",
	ProfessionalLiabilityEO: "Professional Liability (E&O)",
	PropertyInlandMarine:    "Property/Inland Marine",
	PollutionLiability:      "Pollution Liability",
	LiquorLiability:         "Liquor Liability",
	CyberLiability:          "Cyber Liability",
}

// CoverageTypes lists every coverage type in display order.
func CoverageTypes() []CoverageType {
	return []CoverageType{
		GeneralLiability, AutomobileLiability, WorkersCompensation, EmployersLiability,
		UmbrellaExcessLiability, ProfessionalLiabilityEO, PropertyInlandMarine,
		PollutionLiability, LiquorLiability, CyberLiability,
	}
}

func (c CoverageType) Valid() bool {
	_, ok := coverageLabels[c]
	return ok
}

func (c CoverageType) Label() string {
	if label, ok := coverageLabels[c]; ok {
		return label
	}
	return string(c)
}

// LimitType is nullable; the zero value is stored and rendered as null.
type LimitType string

const (
	LimitNone                LimitType = ""
	LimitPerOccurrence       LimitType = "per_occurrence"
	LimitAggregate           LimitType = "aggregate"
	LimitCombinedSingleLimit LimitType = "combined_single_limit"
	LimitStatutory           LimitType = "statutory"
	LimitPerPerson           LimitType = "per_person"
	LimitPerAccident         LimitType = "per_accident"
)

var limitLabels = map[LimitType]string{
	LimitPerOccurrence:       "per occurrence",
	LimitAggregate:           "aggregate",
	LimitCombinedSingleLimit: "combined single",
	LimitStatutory:           "statutory",
	LimitPerPerson:           "per person",
	LimitPerAccident:         "per accident",
}

// Valid accepts the null limit type.
func (l LimitType) Valid() bool {
	if l == LimitNone {
		return true
	}
	_, ok := limitLabels[l]
	return ok
}

func (l LimitType) Label() string {
	return limitLabels[l]
}

func (l LimitType) Value() (driver.Value, error) {
	if l == LimitNone {
		return nil, nil
	}
	return string(l), nil
}

func (l *LimitType) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = LimitNone
	case string:
		*l = LimitType(v)
	case []byte:
		*l = LimitType(v)
	default:
		return fmt.Errorf("scan limit type: unsupported %T", src)
	}
	return nil
}

func (l LimitType) MarshalJSON() ([]byte, error) {
	if l == LimitNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

func (l *LimitType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = LimitNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = LimitType(s)
	return nil
}

type ConfidenceFlag string

const (
	ConfidenceHigh   ConfidenceFlag = "high"
	ConfidenceMedium ConfidenceFlag = "medium"
	ConfidenceLow    ConfidenceFlag = "low"
)

func (c ConfidenceFlag) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

type ResultStatus string

const (
	ResultMet     ResultStatus = "met"
	ResultNotMet  ResultStatus = "not_met"
	ResultMissing ResultStatus = "missing"
)

type ComplianceStatus string

const (
	StatusPending      ComplianceStatus = "pending"
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non_compliant"
	StatusExpiringSoon ComplianceStatus = "expiring_soon"
	StatusExpired      ComplianceStatus = "expired"
)

func (s ComplianceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompliant, StatusNonCompliant, StatusExpiringSoon, StatusExpired:
		return true
	}
	return false
}

type ProcessingStatus string

const (
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingExtracted  ProcessingStatus = "extracted"
	ProcessingConfirmed  ProcessingStatus = "review_confirmed"
	ProcessingFailed     ProcessingStatus = "failed"
)

type EntityType string

const (
	EntityVendor EntityType = "vendor"
	EntityTenant EntityType = "tenant"
)

func (e EntityType) Valid() bool {
	return e == EntityVendor || e == EntityTenant
}
