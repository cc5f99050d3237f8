package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/apperror"
	"github.com/smallbiznis/covercheck/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records activity. AuditLog errors are informational: callers
// discard them so a failed write never undoes the change being recorded.
type Service interface {
	AuditLog(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = apperror.Validation("invalid_organization", "org_id", "organization is required")
	ErrInvalidPageToken    = apperror.Validation("invalid_page_token", "page_token", "page token is malformed")
	ErrInvalidTimeRange    = apperror.Validation("invalid_time_range", "start_at", "start must not be after end")
	ErrInvalidAction       = apperror.Validation("invalid_action", "action", "action is required")
)
