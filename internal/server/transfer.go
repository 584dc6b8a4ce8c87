package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	transferdomain "github.com/smallbiznis/pxwallet/internal/transfer/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

const (
	defaultTransferHistory = 10
	maxTransferHistory     = 100
)

type createTransferRequest struct {
	TargetPublicID string      `json:"target_public_id" binding:"required,pxid"`
	Amount         money.Money `json:"amount" binding:"required,money"`
}

func (s *Server) CreateTransfer(c *gin.Context) {
	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.transferSvc.Transfer(c.Request.Context(), transferdomain.TransferRequest{
		SenderUserID:   userID(c),
		TargetPublicID: strings.TrimSpace(req.TargetPublicID),
		Amount:         req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionTransferSend,
		TargetType: "internal_transfer",
		TargetID:   resp.ID.String(),
		Metadata: map[string]any{
			"amount":           resp.Amount.String(),
			"target_public_id": strings.ToLower(strings.TrimSpace(req.TargetPublicID)),
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransfers(c *gin.Context) {
	limit, err := parseOptionalLimit(c.Query("limit"), defaultTransferHistory, maxTransferHistory)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 100"))
		return
	}

	resp, err := s.transferSvc.History(c.Request.Context(), userID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
