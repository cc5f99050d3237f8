package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
)

// SystemOrgID owns the built-in default templates visible to every org.
const SystemOrgID snowflake.ID = 0

type RequirementTemplate struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name        string       `gorm:"type:varchar(255);not null" json:"name"`
	Description string       `gorm:"type:text;not null;default:''" json:"description"`
	IsSystem    bool         `gorm:"not null;default:false" json:"is_system"`
	Version     int          `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`

	Requirements []coveragedomain.CoverageRequirement `gorm:"-" json:"requirements"`
}

func (RequirementTemplate) TableName() string { return "requirement_templates" }

// VisibleTo reports whether orgID may read the template.
func (t RequirementTemplate) VisibleTo(orgID snowflake.ID) bool {
	return t.IsSystem || t.OrgID == orgID
}
