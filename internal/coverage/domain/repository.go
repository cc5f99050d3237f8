package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists requirement rows, extracted coverages and comparison
// results. Callers pass the handle so writes can join an outer transaction.
type Repository interface {
	ListRequirements(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]CoverageRequirement, error)
	ReplaceRequirements(ctx context.Context, db *gorm.DB, templateID snowflake.ID, reqs []CoverageRequirement) error

	InsertCoverages(ctx context.Context, db *gorm.DB, coverages []ExtractedCoverage) error
	ListCoverages(ctx context.Context, db *gorm.DB, certificateID snowflake.ID) ([]ExtractedCoverage, error)

	ReplaceResults(ctx context.Context, db *gorm.DB, certificateID snowflake.ID, results []ComplianceResult) error
	ListResults(ctx context.Context, db *gorm.DB, certificateID snowflake.ID) ([]ComplianceResult, error)
}
