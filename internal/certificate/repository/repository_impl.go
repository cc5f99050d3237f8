package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/certificate/domain"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cert *domain.Certificate) error {
	return db.WithContext(ctx).Create(cert).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Certificate, error) {
	var cert domain.Certificate
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&cert).Error
	if err != nil {
		return nil, err
	}
	if cert.ID == 0 {
		return nil, nil
	}
	return &cert, nil
}

func (r *repo) ListByEntity(ctx context.Context, db *gorm.DB, orgID, entityID snowflake.ID) ([]domain.Certificate, error) {
	var items []domain.Certificate
	err := db.WithContext(ctx).
		Where("org_id = ? AND entity_id = ?", orgID, entityID).
		Order("uploaded_at desc, id desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindCurrent(ctx context.Context, db *gorm.DB, entityID snowflake.ID) (*domain.Certificate, error) {
	var cert domain.Certificate
	err := db.WithContext(ctx).
		Where("entity_id = ? AND processing_status = ?", entityID, coveragedomain.ProcessingConfirmed).
		Order("uploaded_at desc, id desc").
		Limit(1).
		Find(&cert).Error
	if err != nil {
		return nil, err
	}
	if cert.ID == 0 {
		return nil, nil
	}
	return &cert, nil
}

func (r *repo) MarkExtracted(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.ExtractionUpdate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE certificates
		 SET processing_status = ?, insured_name = ?, insured_name_match = ?, extracted_entities = ?,
		     dropped_coverages = ?, extracted_at = ?
		 WHERE id = ? AND processing_status = ?`,
		coveragedomain.ProcessingExtracted,
		update.InsuredName,
		update.InsuredNameMatch,
		datatypes.NewJSONSlice(update.ExtractedEntities),
		update.DroppedCoverages,
		update.At,
		id,
		coveragedomain.ProcessingInProgress,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE certificates
		 SET processing_status = ?, failure_message = ?, extracted_at = ?
		 WHERE id = ? AND processing_status = ?`,
		coveragedomain.ProcessingFailed,
		message,
		at,
		id,
		coveragedomain.ProcessingInProgress,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkConfirmed(ctx context.Context, db *gorm.DB, id snowflake.ID, actorID *string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE certificates
		 SET processing_status = ?, confirmed_at = ?, confirmed_by = ?
		 WHERE id = ? AND processing_status = ?`,
		coveragedomain.ProcessingConfirmed,
		at,
		actorID,
		id,
		coveragedomain.ProcessingExtracted,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListStaleProcessing(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Certificate, error) {
	var items []domain.Certificate
	err := db.WithContext(ctx).
		Where("processing_status = ? AND uploaded_at < ?", coveragedomain.ProcessingInProgress, cutoff).
		Order("uploaded_at asc, id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
