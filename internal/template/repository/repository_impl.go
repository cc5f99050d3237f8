package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/template/domain"
	"gorm.io/gorm"
)

const templateColumns = `id, org_id, name, description, is_system, version, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tmpl *domain.RequirementTemplate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO requirement_templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID,
		tmpl.OrgID,
		tmpl.Name,
		tmpl.Description,
		tmpl.IsSystem,
		tmpl.Version,
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	).Error
}

func (r *repo) FindVisible(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.RequirementTemplate, error) {
	var tmpl domain.RequirementTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT `+templateColumns+`
		 FROM requirement_templates
		 WHERE id = ? AND (org_id = ? OR is_system = ?)`,
		id,
		orgID,
		true,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.RequirementTemplate, error) {
	var items []domain.RequirementTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT `+templateColumns+`
		 FROM requirement_templates
		 WHERE org_id = ? OR is_system = ?
		 ORDER BY is_system DESC, name ASC, id ASC`,
		orgID,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, tmpl *domain.RequirementTemplate, expectedVersion int) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE requirement_templates
		 SET name = ?, description = ?, version = ?, updated_at = ?
		 WHERE id = ? AND org_id = ? AND is_system = ? AND version = ?`,
		tmpl.Name,
		tmpl.Description,
		tmpl.Version,
		tmpl.UpdatedAt,
		tmpl.ID,
		tmpl.OrgID,
		false,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM requirement_templates WHERE id = ? AND org_id = ? AND is_system = ?`,
		id,
		orgID,
		false,
	).Error
}

func (r *repo) FindSystemByName(ctx context.Context, db *gorm.DB, name string) (*domain.RequirementTemplate, error) {
	var tmpl domain.RequirementTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT `+templateColumns+`
		 FROM requirement_templates
		 WHERE is_system = ? AND name = ?`,
		true,
		name,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}
