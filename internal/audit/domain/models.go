package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// AuditLog is one user-visible action recorded after it succeeded.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID     string            `gorm:"type:varchar(191);not null;index:ix_audit_logs_user_created,priority:1" json:"user_id"`
	ActorType  string            `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:varchar(191)" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null" json:"action"`
	TargetType string            `gorm:"type:varchar(64);not null" json:"target_type"`
	TargetID   *string           `gorm:"type:varchar(64)" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index:ix_audit_logs_user_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
