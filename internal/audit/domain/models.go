package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

const (
	ActionTemplateCreated      = "template.created"
	ActionTemplateUpdated      = "template.updated"
	ActionTemplateDuplicated   = "template.duplicated"
	ActionTemplateDeleted      = "template.deleted"
	ActionEntityCreated        = "entity.created"
	ActionEntityDeleted        = "entity.deleted"
	ActionEntityTemplateSet    = "entity.template_assigned"
	ActionComplianceChanged    = "entity.compliance_status_changed"
	ActionCertificateUploaded  = "certificate.uploaded"
	ActionCertificateFailed    = "certificate.extraction_failed"
	ActionCertificateConfirmed = "certificate.confirmed"
)

const (
	TargetTemplate    = "template"
	TargetEntity      = "entity"
	TargetCertificate = "certificate"
)

// AuditLog is one activity log row. Rows are append-only.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index" json:"org_id"`
	ActorType  string            `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null" json:"action"`
	TargetType string            `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID   *string           `json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is what callers record. An empty ActorID is written as a system actor.
type Entry struct {
	OrgID      snowflake.ID
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}
