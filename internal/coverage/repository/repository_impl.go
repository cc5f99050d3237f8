package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/coverage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListRequirements(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]domain.CoverageRequirement, error) {
	var reqs []domain.CoverageRequirement
	err := db.WithContext(ctx).Raw(
		`SELECT id, template_id, coverage_type, limit_type, minimum_limit, is_required,
		        requires_additional_insured, requires_waiver_of_subrogation, position, created_at
		 FROM coverage_requirements
		 WHERE template_id = ?
		 ORDER BY position ASC, id ASC`,
		templateID,
	).Scan(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *repo) ReplaceRequirements(ctx context.Context, db *gorm.DB, templateID snowflake.ID, reqs []domain.CoverageRequirement) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM coverage_requirements WHERE template_id = ?`,
		templateID,
	).Error; err != nil {
		return err
	}
	for i := range reqs {
		req := reqs[i]
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO coverage_requirements (id, template_id, coverage_type, limit_type, minimum_limit, is_required,
			        requires_additional_insured, requires_waiver_of_subrogation, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID,
			templateID,
			req.CoverageType,
			req.LimitType,
			req.MinimumLimit,
			req.IsRequired,
			req.RequiresAdditionalInsured,
			req.RequiresWaiverOfSubrogation,
			req.Position,
			req.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertCoverages(ctx context.Context, db *gorm.DB, coverages []domain.ExtractedCoverage) error {
	if len(coverages) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&coverages).Error
}

func (r *repo) ListCoverages(ctx context.Context, db *gorm.DB, certificateID snowflake.ID) ([]domain.ExtractedCoverage, error) {
	var coverages []domain.ExtractedCoverage
	err := db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("position ASC, id ASC").
		Find(&coverages).Error
	if err != nil {
		return nil, err
	}
	return coverages, nil
}

// ReplaceResults must run inside the caller's transaction so readers see
// either the previous result set or the new one.
func (r *repo) ReplaceResults(ctx context.Context, db *gorm.DB, certificateID snowflake.ID, results []domain.ComplianceResult) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM compliance_results WHERE certificate_id = ?`,
		certificateID,
	).Error; err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&results).Error
}

func (r *repo) ListResults(ctx context.Context, db *gorm.DB, certificateID snowflake.ID) ([]domain.ComplianceResult, error) {
	var results []domain.ComplianceResult
	err := db.WithContext(ctx).Raw(
		`SELECT cr.id, cr.certificate_id, cr.requirement_id, cr.status, cr.extracted_coverage_id,
		        cr.gap_description, cr.created_at
		 FROM compliance_results cr
		 LEFT JOIN coverage_requirements req ON req.id = cr.requirement_id
		 WHERE cr.certificate_id = ?
		 ORDER BY req.position ASC, cr.requirement_id ASC`,
		certificateID,
	).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
