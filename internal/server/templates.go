package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
)

type requirementInput struct {
	CoverageType                string `json:"coverage_type"`
	LimitType                   string `json:"limit_type"`
	MinimumLimit                *int64 `json:"minimum_limit"`
	IsRequired                  bool   `json:"is_required"`
	RequiresAdditionalInsured   bool   `json:"requires_additional_insured"`
	RequiresWaiverOfSubrogation bool   `json:"requires_waiver_of_subrogation"`
}

func toRequirements(inputs []requirementInput) []coveragedomain.CoverageRequirement {
	out := make([]coveragedomain.CoverageRequirement, 0, len(inputs))
	for i, in := range inputs {
		out = append(out, coveragedomain.CoverageRequirement{
			CoverageType:                coveragedomain.CoverageType(in.CoverageType),
			LimitType:                   coveragedomain.LimitType(in.LimitType),
			MinimumLimit:                in.MinimumLimit,
			IsRequired:                  in.IsRequired,
			RequiresAdditionalInsured:   in.RequiresAdditionalInsured,
			RequiresWaiverOfSubrogation: in.RequiresWaiverOfSubrogation,
			Position:                    i,
		})
	}
	return out
}

type createTemplateRequest struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Requirements []requirementInput `json:"requirements"`
}

type updateTemplateRequest struct {
	Name            *string            `json:"name"`
	Description     *string            `json:"description"`
	Requirements    []requirementInput `json:"requirements"`
	ExpectedVersion *int               `json:"expected_version"`
}

type duplicateTemplateRequest struct {
	Name string `json:"name"`
}

func (s *Server) ListTemplates(c *gin.Context) {
	orgID, _ := requestOrg(c)
	templates, err := s.templateSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func (s *Server) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orgID, actorID := requestOrg(c)
	tmpl, err := s.templateSvc.Create(c.Request.Context(), templatedomain.CreateRequest{
		OrgID:        orgID,
		ActorID:      actorID,
		Name:         req.Name,
		Description:  req.Description,
		Requirements: toRequirements(req.Requirements),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tmpl})
}

func (s *Server) GetTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, _ := requestOrg(c)
	tmpl, err := s.templateSvc.GetByID(c.Request.Context(), templatedomain.GetRequest{OrgID: orgID, ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

// UpdateTemplate replaces the requirement set and reports the cascade that
// re-evaluated assigned entities.
func (s *Server) UpdateTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orgID, actorID := requestOrg(c)
	resp, err := s.templateSvc.Update(c.Request.Context(), templatedomain.UpdateRequest{
		OrgID:           orgID,
		ActorID:         actorID,
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		Requirements:    toRequirements(req.Requirements),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DuplicateTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req duplicateTemplateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	orgID, actorID := requestOrg(c)
	tmpl, err := s.templateSvc.Duplicate(c.Request.Context(), templatedomain.DuplicateRequest{
		OrgID:    orgID,
		ActorID:  actorID,
		SourceID: id,
		Name:     req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tmpl})
}

func (s *Server) DeleteTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, actorID := requestOrg(c)
	if err := s.templateSvc.Delete(c.Request.Context(), templatedomain.DeleteRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      id,
	}); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
