package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	"github.com/smallbiznis/covercheck/pkg/db/pagination"
)

type createEntityRequest struct {
	EntityType string `json:"entity_type"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	TemplateID string `json:"template_id"`
}

type assignTemplateRequest struct {
	// TemplateID empty or null unassigns.
	TemplateID *string `json:"template_id"`
}

type listEntitiesQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	EntityType string `form:"entity_type"`
	Status     string `form:"status"`
	TemplateID string `form:"template_id"`
}

func (s *Server) ListEntities(c *gin.Context) {
	var query listEntitiesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	templateID, err := parseOptionalSnowflakeID(query.TemplateID)
	if err != nil {
		AbortWithError(c, newValidationError("template_id", "invalid_template_id", "invalid template_id"))
		return
	}

	orgID, _ := requestOrg(c)
	resp, err := s.entitySvc.List(c.Request.Context(), entitydomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		OrgID:      orgID,
		EntityType: coveragedomain.EntityType(strings.TrimSpace(query.EntityType)),
		Status:     coveragedomain.ComplianceStatus(strings.TrimSpace(query.Status)),
		TemplateID: templateID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Entities, "page_info": resp.PageInfo})
}

func (s *Server) CreateEntity(c *gin.Context) {
	var req createEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	templateID, err := parseOptionalSnowflakeID(req.TemplateID)
	if err != nil {
		AbortWithError(c, newValidationError("template_id", "invalid_template_id", "invalid template_id"))
		return
	}

	orgID, actorID := requestOrg(c)
	entity, err := s.entitySvc.Create(c.Request.Context(), entitydomain.CreateRequest{
		OrgID:      orgID,
		ActorID:    actorID,
		EntityType: coveragedomain.EntityType(strings.TrimSpace(req.EntityType)),
		Name:       req.Name,
		Email:      req.Email,
		TemplateID: templateID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entity})
}

func (s *Server) GetEntity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, _ := requestOrg(c)
	entity, err := s.entitySvc.GetByID(c.Request.Context(), entitydomain.GetRequest{OrgID: orgID, ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entity})
}

func (s *Server) DeleteEntity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, actorID := requestOrg(c)
	if err := s.entitySvc.Delete(c.Request.Context(), entitydomain.DeleteRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      id,
	}); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) AssignEntityTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	var raw string
	if req.TemplateID != nil {
		raw = *req.TemplateID
	}
	templateID, err := parseOptionalSnowflakeID(raw)
	if err != nil {
		AbortWithError(c, newValidationError("template_id", "invalid_template_id", "invalid template_id"))
		return
	}

	orgID, actorID := requestOrg(c)
	resp, err := s.entitySvc.AssignTemplate(c.Request.Context(), entitydomain.AssignTemplateRequest{
		OrgID:      orgID,
		ActorID:    actorID,
		EntityID:   id,
		TemplateID: templateID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RecalculateEntity re-runs the comparison for one entity on demand.
func (s *Server) RecalculateEntity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, actorID := requestOrg(c)
	outcome, err := s.recalculator.RecalculateEntity(c.Request.Context(), coveragedomain.RecalculateEntityRequest{
		OrgID:    orgID,
		ActorID:  actorID,
		EntityID: id,
		Reason:   entitydomain.ReasonManual,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": outcome})
}
