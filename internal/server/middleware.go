package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/covercheck/internal/orgcontext"
)

const (
	HeaderOrg   = "X-Org-ID"
	HeaderActor = "X-Actor-ID"
)

// OrgContext resolves the tenant and actor from request headers. Callers are
// trusted; authentication happens upstream.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, newValidationError("org_id", "missing_organization", "X-Org-ID header is required"))
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID <= 0 {
			AbortWithError(c, newValidationError("org_id", "invalid_organization", "X-Org-ID header is malformed"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID.Int64())
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = orgcontext.WithActorID(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestOrg returns the org and actor placed by OrgContext.
func requestOrg(c *gin.Context) (snowflake.ID, string) {
	ctx := c.Request.Context()
	orgID, _ := orgcontext.OrgIDFromContext(ctx)
	return orgID, orgcontext.ActorIDFromContext(ctx)
}
