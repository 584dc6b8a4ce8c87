package domain

import (
	"context"

	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID string
	Action string
	After  *pagination.Cursor
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}
