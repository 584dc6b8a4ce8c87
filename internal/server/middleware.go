package server

import (
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	"github.com/smallbiznis/pxwallet/internal/identity"
	obscontext "github.com/smallbiznis/pxwallet/internal/observability/context"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the caller from the bearer token, or from the
// X-User-Id header when no signing secret is configured.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.identity.Authenticate(
			c.GetHeader(identity.HeaderAuthorization),
			c.GetHeader(identity.HeaderUserID),
		)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := identity.WithIdentity(c.Request.Context(), id)
		ctx = obscontext.WithActor(ctx, "user", id.UserID)
		ctx = auditdomain.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, id.UserID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
