package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
)

func (s *Server) ListSubscriptions(c *gin.Context) {
	status, err := parseOptionalStatus(c.Query("status"))
	if err != nil {
		AbortWithError(c, newValidationError("status", "invalid_status", "unknown subscription status"))
		return
	}

	uid := userID(c)
	s.sweep(c, uid)

	subs, err := s.subscriptionSvc.List(c.Request.Context(), uid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": filterSubscriptions(subs, status)})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	resp, err := s.subscriptionSvc.Get(c.Request.Context(), userID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), userID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionSubscriptionCancel,
		TargetType: "subscription",
		TargetID:   resp.ID.String(),
		Metadata:   map[string]any{"service_key": resp.ServiceKey, "plan_code": resp.PlanCode},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriptionReceipt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	pdf, err := s.checkoutSvc.Receipt(c.Request.Context(), userID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func filterSubscriptions(subs []subscriptiondomain.Subscription, status *subscriptiondomain.Status) []subscriptiondomain.Subscription {
	if status == nil {
		return subs
	}
	out := make([]subscriptiondomain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Status == *status {
			out = append(out, sub)
		}
	}
	return out
}
