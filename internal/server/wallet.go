package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	transferdomain "github.com/smallbiznis/pxwallet/internal/transfer/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

const (
	walletRecentTransactions = 20
	walletTransferHistory    = 10
)

type walletResponse struct {
	walletdomain.Summary
	Transfers transferdomain.History `json:"transfers"`
}

type moneyRequest struct {
	Amount money.Money `json:"amount" binding:"required,money"`
}

func (s *Server) GetWallet(c *gin.Context) {
	uid := userID(c)
	s.sweep(c, uid)

	ctx := c.Request.Context()
	summary, err := s.walletSvc.Summary(ctx, uid, walletRecentTransactions)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	history, err := s.transferSvc.History(ctx, uid, walletTransferHistory)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": walletResponse{Summary: summary, Transfers: history}})
}

func (s *Server) TopUp(c *gin.Context) {
	var req moneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	txn, err := s.walletSvc.TopUp(c.Request.Context(), userID(c), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionWalletTopUp,
		TargetType: "transaction",
		TargetID:   txn.ID.String(),
		Metadata:   map[string]any{"amount": txn.Amount.String()},
	})

	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) Withdraw(c *gin.Context) {
	var req moneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	txn, err := s.walletSvc.Withdraw(c.Request.Context(), userID(c), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionWalletWithdraw,
		TargetType: "transaction",
		TargetID:   txn.ID.String(),
		Metadata:   map[string]any{"amount": txn.Amount.String()},
	})

	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) ListWalletTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	wallet, err := s.walletSvc.GetOrCreate(ctx, userID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.ListForWallet(ctx, ledgerdomain.ListRequest{
		WalletID:  wallet.ID,
		PageSize:  query.Size(),
		PageToken: query.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
