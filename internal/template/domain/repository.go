package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tmpl *RequirementTemplate) error
	// FindVisible returns org-owned or system templates; nil when absent or
	// owned by another org.
	FindVisible(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*RequirementTemplate, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]RequirementTemplate, error)
	// UpdateVersioned writes name, description, version and updated_at when
	// the stored version still equals expectedVersion.
	UpdateVersioned(ctx context.Context, db *gorm.DB, tmpl *RequirementTemplate, expectedVersion int) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	FindSystemByName(ctx context.Context, db *gorm.DB, name string) (*RequirementTemplate, error)
}
