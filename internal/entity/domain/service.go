package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/apperror"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"github.com/smallbiznis/covercheck/pkg/db/pagination"
)

// Recalculation reasons recorded on status change events.
const (
	ReasonTemplateAssigned = "template_assigned"
	ReasonManual           = "manual"
)

type CreateRequest struct {
	OrgID      snowflake.ID
	ActorID    string
	EntityType coveragedomain.EntityType
	Name       string
	Email      string
	TemplateID *snowflake.ID
}

type GetRequest struct {
	OrgID snowflake.ID
	ID    snowflake.ID
}

type ListRequest struct {
	pagination.Pagination
	OrgID      snowflake.ID
	EntityType coveragedomain.EntityType
	Status     coveragedomain.ComplianceStatus
	TemplateID *snowflake.ID
}

type ListResponse struct {
	pagination.PageInfo
	Entities []Entity `json:"entities"`
}

type DeleteRequest struct {
	OrgID   snowflake.ID
	ActorID string
	ID      snowflake.ID
}

// AssignTemplateRequest binds the entity to TemplateID; nil unassigns.
type AssignTemplateRequest struct {
	OrgID      snowflake.ID
	ActorID    string
	EntityID   snowflake.ID
	TemplateID *snowflake.ID
}

type AssignTemplateResponse struct {
	Entity  Entity                       `json:"entity"`
	Outcome coveragedomain.EntityOutcome `json:"outcome"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Entity, error)
	GetByID(ctx context.Context, req GetRequest) (Entity, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Delete(ctx context.Context, req DeleteRequest) error
	AssignTemplate(ctx context.Context, req AssignTemplateRequest) (AssignTemplateResponse, error)
}

var (
	ErrInvalidOrganization = apperror.Validation("invalid_organization", "org_id", "organization is required")
	ErrInvalidName         = apperror.Validation("invalid_name", "name", "name is required")
	ErrInvalidEmail        = apperror.Validation("invalid_email", "email", "email is malformed")
	ErrInvalidType         = apperror.Validation("invalid_entity_type", "entity_type", "entity type must be vendor or tenant")
	ErrInvalidStatus       = apperror.Validation("invalid_status", "status", "unknown compliance status")
	ErrInvalidPageToken    = apperror.Validation("invalid_page_token", "page_token", "page token is malformed")
	ErrNotFound            = apperror.NotFound("entity_not_found", "entity not found")
	ErrTemplateNotFound    = apperror.NotFound("template_not_found", "template not found")
)
