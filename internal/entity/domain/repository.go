package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID      snowflake.ID
	EntityType coveragedomain.EntityType
	Status     coveragedomain.ComplianceStatus
	TemplateID *snowflake.ID
	// Keyset position: rows sort by name, then id.
	AfterName string
	AfterID   snowflake.ID
	Limit     int
}

// Repository methods ignore soft-deleted rows.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entity *Entity) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Entity, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Entity, error)
	SoftDelete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	UpdateTemplate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, templateID *snowflake.ID, at time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status coveragedomain.ComplianceStatus, at time.Time) error

	ListIDsByTemplate(ctx context.Context, db *gorm.DB, orgID, templateID snowflake.ID) ([]snowflake.ID, error)
	CountByTemplate(ctx context.Context, db *gorm.DB, templateID snowflake.ID) (int64, error)
	// DetachDeleted clears templateID from soft-deleted entities so the
	// template row can be removed.
	DetachDeleted(ctx context.Context, db *gorm.DB, templateID snowflake.ID) error
	// ListForSweep pages, across all orgs, entities that have a confirmed
	// certificate, ordered by id.
	ListForSweep(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Entity, error)
}
