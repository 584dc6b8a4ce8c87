package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	"github.com/smallbiznis/pxwallet/internal/clock"
	obscontext "github.com/smallbiznis/pxwallet/internal/observability/context"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, event auditdomain.Event) error {
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return auditdomain.ErrInvalidUser
	}

	targetType := strings.TrimSpace(event.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := resolveActor(ctx)
	ipAddress, userAgent := auditdomain.ClientFromContext(ctx)

	payload := map[string]any{}
	for key, value := range event.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		UserID:     userID,
		ActorType:  actorType,
		ActorID:    normalizePointer(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(event.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  normalizePointer(ipAddress),
		UserAgent:  normalizePointer(userAgent),
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidUser
	}

	after, err := pagination.DecodeCursor(strings.TrimSpace(req.PageToken))
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	limit := req.Size()

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		UserID: userID,
		Action: req.Action,
		After:  after,
		Limit:  limit + 1,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, info, err := pagination.Trim(items, limit, func(item auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: int64(item.ID), CreatedAt: item.CreatedAt}
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	if items == nil {
		items = []auditdomain.AuditLog{}
	}
	return auditdomain.ListAuditLogResponse{PageInfo: info, AuditLogs: items}, nil
}

func resolveActor(ctx context.Context) (string, string) {
	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		return string(auditdomain.ActorTypeSystem), ""
	}
	return actorType, actorID
}

func normalizePointer(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
