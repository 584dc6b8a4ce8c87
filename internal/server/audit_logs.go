package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	obslogger "github.com/smallbiznis/pxwallet/internal/observability/logger"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"go.uber.org/zap"
)

// recordAudit writes an entry for the caller. A failed write is logged and
// does not undo the action that already succeeded.
func (s *Server) recordAudit(c *gin.Context, event auditdomain.Event) {
	if s.auditSvc == nil {
		return
	}
	event.UserID = userID(c)

	ctx := c.Request.Context()
	if err := s.auditSvc.AuditLog(ctx, event); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit log write failed",
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var query struct {
		pagination.Pagination
		Action string `form:"action"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: query.Pagination,
		UserID:     userID(c),
		Action:     strings.TrimSpace(query.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
