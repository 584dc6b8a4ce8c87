package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/pxwallet/pkg/money"
)

type TransferRequest struct {
	SenderUserID   string
	TargetPublicID string
	Amount         money.Money
}

type History struct {
	Sent     []InternalTransfer `json:"sent"`
	Received []InternalTransfer `json:"received"`
}

type Service interface {
	Transfer(ctx context.Context, req TransferRequest) (InternalTransfer, error)
	History(ctx context.Context, userID string, limit int) (History, error)
}

var (
	ErrSelfTransfer     = errors.New("self_transfer")
	ErrReceiverNotFound = errors.New("receiver_not_found")
)
