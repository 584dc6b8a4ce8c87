package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
)

const (
	ActionWalletTopUp            = "wallet.top_up"
	ActionWalletWithdraw         = "wallet.withdraw"
	ActionTransferSend           = "transfer.send"
	ActionServiceAccountRegister = "service_account.register"
	ActionServiceAccountLogin    = "service_account.login"
	ActionSubscriptionPurchase   = "subscription.purchase"
	ActionSubscriptionCancel     = "subscription.cancel"
)

// Event describes an action performed for UserID. The actor, request id and
// client details are taken from the context.
type Event struct {
	UserID     string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	UserID string
	Action string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	AuditLog(ctx context.Context, event Event) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidAction = errors.New("invalid_action")
)
