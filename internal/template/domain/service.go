package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/apperror"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
)

type CreateRequest struct {
	OrgID        snowflake.ID
	ActorID      string
	Name         string
	Description  string
	Requirements []coveragedomain.CoverageRequirement
}

// UpdateRequest replaces the full requirement set. Nil Name or Description
// keeps the stored value. ExpectedVersion, when set, must match the stored
// version.
type UpdateRequest struct {
	OrgID           snowflake.ID
	ActorID         string
	ID              snowflake.ID
	Name            *string
	Description     *string
	Requirements    []coveragedomain.CoverageRequirement
	ExpectedVersion *int
}

// UpdateResponse carries the saved template and the outcome of the cascade
// that followed the commit. CascadeError is set when the cascade could not
// run; the save itself still stands.
type UpdateResponse struct {
	Template     RequirementTemplate     `json:"template"`
	Cascade      *coveragedomain.Summary `json:"cascade,omitempty"`
	CascadeError string                  `json:"cascade_error,omitempty"`
}

type DuplicateRequest struct {
	OrgID    snowflake.ID
	ActorID  string
	SourceID snowflake.ID
	Name     string
}

type DeleteRequest struct {
	OrgID   snowflake.ID
	ActorID string
	ID      snowflake.ID
}

type GetRequest struct {
	OrgID snowflake.ID
	ID    snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (RequirementTemplate, error)
	Update(ctx context.Context, req UpdateRequest) (UpdateResponse, error)
	Duplicate(ctx context.Context, req DuplicateRequest) (RequirementTemplate, error)
	Delete(ctx context.Context, req DeleteRequest) error
	GetByID(ctx context.Context, req GetRequest) (RequirementTemplate, error)
	List(ctx context.Context, orgID snowflake.ID) ([]RequirementTemplate, error)
}

var (
	ErrInvalidOrganization = apperror.Validation("invalid_organization", "org_id", "organization is required")
	ErrInvalidName         = apperror.Validation("invalid_name", "name", "template name is required")
	ErrNotFound            = apperror.NotFound("template_not_found", "template not found")
	ErrSystemImmutable     = apperror.Authorization("system_template_immutable",
		"system default templates cannot be edited or deleted; duplicate the template to customize it")
	ErrVersionConflict = apperror.Conflict("template_version_conflict",
		"template was changed by another request; reload it and try again")
)

func ErrInUse(count int64) error {
	noun := "entities"
	if count == 1 {
		noun = "entity"
	}
	return apperror.InUse("template_in_use", count,
		fmt.Sprintf("template is assigned to %d %s; reassign them before deleting", count, noun))
}
