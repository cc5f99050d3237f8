package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"gorm.io/datatypes"
)

// Certificate is one uploaded COI. Certificates are append-only history; the
// entity's current one is its latest review_confirmed upload.
type Certificate struct {
	ID                snowflake.ID                    `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID                    `gorm:"not null;index" json:"org_id"`
	EntityID          snowflake.ID                    `gorm:"not null;index" json:"entity_id"`
	FileName          string                          `gorm:"type:varchar(255);not null" json:"file_name"`
	ContentType       string                          `gorm:"type:varchar(128);not null" json:"content_type"`
	SizeBytes         int64                           `gorm:"not null" json:"size_bytes"`
	ObjectKey         string                          `gorm:"type:varchar(512);not null;default:''" json:"-"`
	ProcessingStatus  coveragedomain.ProcessingStatus `gorm:"type:varchar(32);not null" json:"processing_status"`
	FailureMessage    *string                         `json:"failure_message,omitempty"`
	InsuredName       *string                         `json:"insured_name,omitempty"`
	InsuredNameMatch  *bool                           `json:"insured_name_match,omitempty"`
	ExtractedEntities datatypes.JSONSlice[string]     `json:"extracted_entities,omitempty"`
	DroppedCoverages  int                             `gorm:"not null;default:0" json:"dropped_coverages"`
	UploadedAt        time.Time                       `gorm:"not null;index" json:"uploaded_at"`
	ExtractedAt       *time.Time                      `json:"extracted_at,omitempty"`
	ConfirmedAt       *time.Time                      `json:"confirmed_at,omitempty"`
	ConfirmedBy       *string                         `json:"confirmed_by,omitempty"`
}

func (Certificate) TableName() string { return "certificates" }
