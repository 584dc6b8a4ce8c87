package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
)

const dashboardRecentTransactions = 5

type dashboardResponse struct {
	Wallet              walletdomain.Wallet               `json:"wallet"`
	RecentTransactions  []ledgerdomain.Transaction        `json:"recent_transactions"`
	HasPending          bool                              `json:"has_pending"`
	ActiveSubscriptions int                               `json:"active_subscriptions"`
	Subscriptions       []subscriptiondomain.Subscription `json:"subscriptions"`
}

func (s *Server) GetDashboard(c *gin.Context) {
	uid := userID(c)
	s.sweep(c, uid)

	ctx := c.Request.Context()
	summary, err := s.walletSvc.Summary(ctx, uid, dashboardRecentTransactions)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subs, err := s.subscriptionSvc.List(ctx, uid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	active := 0
	for _, sub := range subs {
		if sub.Status == subscriptiondomain.StatusActive {
			active++
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": dashboardResponse{
		Wallet:              summary.Wallet,
		RecentTransactions:  summary.RecentTransactions,
		HasPending:          summary.HasPending,
		ActiveSubscriptions: active,
		Subscriptions:       subs,
	}})
}
