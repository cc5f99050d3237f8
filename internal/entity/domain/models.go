package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
)

// Entity is a vendor or tenant. ComplianceStatus is a cached projection,
// rewritten only by recalculation and the expiration sweep.
type Entity struct {
	ID               snowflake.ID                    `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID                    `gorm:"not null;index" json:"org_id"`
	EntityType       coveragedomain.EntityType       `gorm:"type:varchar(16);not null" json:"entity_type"`
	Name             string                          `gorm:"type:varchar(255);not null" json:"name"`
	Email            string                          `gorm:"type:varchar(255);not null;default:''" json:"email,omitempty"`
	TemplateID       *snowflake.ID                   `gorm:"index" json:"template_id"`
	ComplianceStatus coveragedomain.ComplianceStatus `gorm:"type:varchar(32);not null;default:'pending'" json:"compliance_status"`
	StatusUpdatedAt  *time.Time                      `json:"status_updated_at,omitempty"`
	DeletedAt        *time.Time                      `gorm:"index" json:"-"`
	CreatedAt        time.Time                       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                       `gorm:"not null" json:"updated_at"`
}

func (Entity) TableName() string { return "entities" }
