package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRequest struct {
	WalletID  snowflake.ID
	PageSize  int
	PageToken string
}

type ListResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	// Append inserts entry inside the caller's transaction.
	Append(ctx context.Context, tx *gorm.DB, entry Entry) (Transaction, error)
	ListForWallet(ctx context.Context, req ListRequest) (ListResponse, error)
	Recent(ctx context.Context, userID string, limit int) ([]Transaction, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	SettleDue(ctx context.Context, userID string, now time.Time) (int64, error)
}

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidKind          = errors.New("invalid_kind")
	ErrInvalidReferenceType = errors.New("invalid_reference_type")
	ErrInvalidWallet        = errors.New("invalid_wallet")
	ErrInvalidStatus        = errors.New("invalid_status")
)
