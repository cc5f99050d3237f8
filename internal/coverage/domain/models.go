package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CoverageRequirement struct {
	ID                          snowflake.ID `gorm:"primaryKey" json:"id"`
	TemplateID                  snowflake.ID `gorm:"not null;index" json:"template_id"`
	CoverageType                CoverageType `gorm:"type:varchar(64);not null" json:"coverage_type"`
	LimitType                   LimitType    `gorm:"type:varchar(64)" json:"limit_type"`
	MinimumLimit                *int64       `json:"minimum_limit"`
	IsRequired                  bool         `gorm:"not null;default:false" json:"is_required"`
	RequiresAdditionalInsured   bool         `gorm:"not null;default:false" json:"requires_additional_insured"`
	RequiresWaiverOfSubrogation bool         `gorm:"not null;default:false" json:"requires_waiver_of_subrogation"`
	Position                    int          `gorm:"not null;default:0" json:"position"`
	CreatedAt                   time.Time    `gorm:"not null" json:"created_at"`
}

func (CoverageRequirement) TableName() string { return "coverage_requirements" }

// ExtractedCoverage is written once per successful extraction and never edited.
type ExtractedCoverage struct {
	ID                        snowflake.ID                `gorm:"primaryKey" json:"id"`
	CertificateID             snowflake.ID                `gorm:"not null;index" json:"certificate_id"`
	CoverageType              CoverageType                `gorm:"type:varchar(64);not null" json:"coverage_type"`
	LimitType                 LimitType                   `gorm:"type:varchar(64)" json:"limit_type"`
	LimitAmount               *int64                      `json:"limit_amount"`
	CarrierName               string                      `gorm:"not null;default:''" json:"carrier_name"`
	PolicyNumber              string                      `gorm:"not null;default:''" json:"policy_number"`
	EffectiveDate             *time.Time                  `json:"effective_date"`
	ExpirationDate            *time.Time                  `json:"expiration_date"`
	AdditionalInsuredListed   bool                        `gorm:"not null;default:false" json:"additional_insured_listed"`
	AdditionalInsuredEntities datatypes.JSONSlice[string] `json:"additional_insured_entities"`
	WaiverOfSubrogation       bool                        `gorm:"not null;default:false" json:"waiver_of_subrogation"`
	ConfidenceFlag            ConfidenceFlag              `gorm:"type:varchar(16);not null" json:"confidence_flag"`
	Position                  int                         `gorm:"not null;default:0" json:"position"`
	CreatedAt                 time.Time                   `gorm:"not null" json:"created_at"`
}

func (ExtractedCoverage) TableName() string { return "extracted_coverages" }

// ComplianceResult joins one certificate to one requirement. ExtractedCoverageID
// is nil exactly when Status is missing; GapDescription is set only for not_met.
type ComplianceResult struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	CertificateID       snowflake.ID  `gorm:"not null;index" json:"certificate_id"`
	RequirementID       snowflake.ID  `gorm:"not null;index" json:"requirement_id"`
	Status              ResultStatus  `gorm:"type:varchar(16);not null" json:"status"`
	ExtractedCoverageID *snowflake.ID `json:"extracted_coverage_id"`
	GapDescription      *string       `json:"gap_description"`
	CreatedAt           time.Time     `gorm:"not null" json:"created_at"`
}

func (ComplianceResult) TableName() string { return "compliance_results" }
