package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"github.com/smallbiznis/covercheck/internal/entity/domain"
	"gorm.io/gorm"
)

const entityColumns = `id, org_id, entity_type, name, email, template_id, compliance_status,
	status_updated_at, deleted_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entity *domain.Entity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO entities (id, org_id, entity_type, name, email, template_id, compliance_status,
			status_updated_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID,
		entity.OrgID,
		entity.EntityType,
		entity.Name,
		entity.Email,
		entity.TemplateID,
		entity.ComplianceStatus,
		entity.StatusUpdatedAt,
		entity.CreatedAt,
		entity.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Entity, error) {
	var entity domain.Entity
	err := db.WithContext(ctx).Raw(
		`SELECT `+entityColumns+`
		 FROM entities
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		orgID,
		id,
	).Scan(&entity).Error
	if err != nil {
		return nil, err
	}
	if entity.ID == 0 {
		return nil, nil
	}
	return &entity, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Entity, error) {
	var items []domain.Entity
	stmt := db.WithContext(ctx).Model(&domain.Entity{}).
		Where("org_id = ? AND deleted_at IS NULL", filter.OrgID)

	if filter.EntityType != "" {
		stmt = stmt.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Status != "" {
		stmt = stmt.Where("compliance_status = ?", filter.Status)
	}
	if filter.TemplateID != nil {
		stmt = stmt.Where("template_id = ?", *filter.TemplateID)
	}
	if filter.AfterID != 0 {
		stmt = stmt.Where("(name > ?) OR (name = ? AND id > ?)", filter.AfterName, filter.AfterName, filter.AfterID)
	}

	stmt = stmt.Order("name asc, id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entities SET deleted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		at,
		at,
		orgID,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateTemplate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, templateID *snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE entities SET template_id = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		templateID,
		at,
		orgID,
		id,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status coveragedomain.ComplianceStatus, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE entities SET compliance_status = ?, status_updated_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		status,
		at,
		at,
		orgID,
		id,
	).Error
}

func (r *repo) ListIDsByTemplate(ctx context.Context, db *gorm.DB, orgID, templateID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM entities
		 WHERE org_id = ? AND template_id = ? AND deleted_at IS NULL
		 ORDER BY id ASC`,
		orgID,
		templateID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) CountByTemplate(ctx context.Context, db *gorm.DB, templateID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM entities WHERE template_id = ? AND deleted_at IS NULL`,
		templateID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) DetachDeleted(ctx context.Context, db *gorm.DB, templateID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE entities SET template_id = NULL WHERE template_id = ? AND deleted_at IS NOT NULL`,
		templateID,
	).Error
}

func (r *repo) ListForSweep(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.Entity, error) {
	var items []domain.Entity
	err := db.WithContext(ctx).Raw(
		`SELECT `+entityColumns+`
		 FROM entities e
		 WHERE e.deleted_at IS NULL AND e.id > ?
		   AND EXISTS (
		     SELECT 1 FROM certificates c
		     WHERE c.entity_id = e.id AND c.processing_status = ?
		   )
		 ORDER BY e.id ASC
		 LIMIT ?`,
		afterID,
		coveragedomain.ProcessingConfirmed,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
