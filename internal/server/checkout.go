package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	"github.com/smallbiznis/pxwallet/internal/audit/masking"
	checkoutdomain "github.com/smallbiznis/pxwallet/internal/checkout/domain"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
)

// authResponse hands the client the selection to carry into plan selection.
type authResponse struct {
	serviceaccountdomain.AuthResult
	Selection checkoutdomain.Selection `json:"selection"`
}

func (s *Server) LoginServiceAccount(c *gin.Context) {
	var req serviceaccountdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.UserID = userID(c)

	res, err := s.checkoutSvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAccountAudit(c, auditdomain.ActionServiceAccountLogin, res)

	c.JSON(http.StatusOK, gin.H{"data": newAuthResponse(res)})
}

func (s *Server) RegisterServiceAccount(c *gin.Context) {
	var req serviceaccountdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.UserID = userID(c)

	res, err := s.checkoutSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAccountAudit(c, auditdomain.ActionServiceAccountRegister, res)

	c.JSON(http.StatusCreated, gin.H{"data": newAuthResponse(res)})
}

func (s *Server) recordAccountAudit(c *gin.Context, action string, res serviceaccountdomain.AuthResult) {
	s.recordAudit(c, auditdomain.Event{
		Action:     action,
		TargetType: "service_account",
		TargetID:   res.Account.ID.String(),
		Metadata: map[string]any{
			"service_key": res.Account.ServiceKey,
			"email":       masking.MaskEmail(res.Account.Email),
		},
	})
}

func newAuthResponse(res serviceaccountdomain.AuthResult) authResponse {
	return authResponse{
		AuthResult: res,
		Selection: checkoutdomain.Selection{
			ServiceKey:    res.Account.ServiceKey,
			AccountID:     res.Account.ID.String(),
			TrialEligible: res.TrialEligible,
		},
	}
}

func (s *Server) ListCheckoutPlans(c *gin.Context) {
	var query struct {
		ServiceKey    string `form:"service_key"`
		AccountID     string `form:"account_id"`
		TrialEligible bool   `form:"trial_eligible"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.checkoutSvc.Plans(c.Request.Context(), checkoutdomain.PlansRequest{
		UserID: userID(c),
		Selection: checkoutdomain.Selection{
			ServiceKey:    strings.TrimSpace(query.ServiceKey),
			AccountID:     strings.TrimSpace(query.AccountID),
			TrialEligible: query.TrialEligible,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Checkout(c *gin.Context) {
	var req checkoutdomain.Selection
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.checkoutSvc.Checkout(c.Request.Context(), checkoutdomain.CheckoutRequest{
		UserID:    userID(c),
		Selection: req,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	metadata := map[string]any{
		"service_key": resp.Subscription.ServiceKey,
		"plan_code":   resp.Subscription.PlanCode,
		"total_price": resp.Subscription.TotalPrice.String(),
		"free_trial":  resp.FreeTrial,
	}
	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionSubscriptionPurchase,
		TargetType: "subscription",
		TargetID:   resp.Subscription.ID.String(),
		Metadata:   metadata,
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
