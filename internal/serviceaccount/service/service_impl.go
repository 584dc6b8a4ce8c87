package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/password"
	"github.com/smallbiznis/pxwallet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Catalog catalogdomain.Service
	Config  config.Config
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            domain.Repository
	catalog         catalogdomain.Service
	permissiveLogin bool
}

func NewService(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("serviceaccount.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		catalog:         p.Catalog,
		permissiveLogin: p.Config.ServiceAccountPermissiveLogin,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResult, error) {
	userID := strings.TrimSpace(req.UserID)
	serviceKey, _ := s.resolveService(ctx, req.ServiceKey)
	serviceName := strings.TrimSpace(req.ServiceName)
	username := strings.TrimSpace(req.Username)
	if userID == "" || serviceKey == "" || serviceName == "" || username == "" ||
		strings.TrimSpace(req.Password) == "" || strings.TrimSpace(req.ConfirmPassword) == "" {
		return domain.AuthResult{}, domain.ErrInvalidRequest
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if req.Password != req.ConfirmPassword {
		return domain.AuthResult{}, domain.ErrPasswordMismatch
	}
	if !req.AcceptedTerms {
		return domain.AuthResult{}, domain.ErrTermsNotAccepted
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, userID, serviceKey, email)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if existing != nil {
		return domain.AuthResult{}, domain.ErrAccountExists
	}

	account, err := s.create(ctx, userID, serviceKey, serviceName, username, email, req.Password)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.AuthResult{}, domain.ErrAccountExists
		}
		return domain.AuthResult{}, err
	}

	s.log.Info("service account registered",
		zap.String("user_id", userID),
		zap.String("service_key", serviceKey),
		zap.String("account_id", account.ID.String()),
	)
	return domain.AuthResult{Account: account, Created: true, TrialEligible: true}, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResult, error) {
	userID := strings.TrimSpace(req.UserID)
	serviceKey, serviceName := s.resolveService(ctx, req.ServiceKey)
	if userID == "" || serviceKey == "" || strings.TrimSpace(req.Password) == "" {
		return domain.AuthResult{}, domain.ErrInvalidRequest
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !req.AcceptedTerms {
		return domain.AuthResult{}, domain.ErrTermsNotAccepted
	}

	account, err := s.repo.FindByEmail(ctx, s.db, userID, serviceKey, email)
	if err != nil {
		return domain.AuthResult{}, err
	}

	if account == nil {
		created, err := s.create(ctx, userID, serviceKey, serviceName, localPart(email), email, req.Password)
		if err == nil {
			s.log.Info("service account created on login",
				zap.String("user_id", userID),
				zap.String("service_key", serviceKey),
				zap.String("account_id", created.ID.String()),
			)
			return domain.AuthResult{Account: created, Created: true}, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.AuthResult{}, err
		}
		// A concurrent login created it first; verify against the winner.
		account, err = s.repo.FindByEmail(ctx, s.db, userID, serviceKey, email)
		if err != nil {
			return domain.AuthResult{}, err
		}
		if account == nil {
			return domain.AuthResult{}, domain.ErrNotFound
		}
	}

	if err := password.Verify(req.Password, account.PasswordHash); err != nil {
		if !s.permissiveLogin {
			return domain.AuthResult{}, domain.ErrInvalidCredentials
		}
		hash, hashErr := password.Hash(req.Password)
		if hashErr != nil {
			return domain.AuthResult{}, hashErr
		}
		now := s.clock.Now()
		if err := s.repo.UpdatePasswordHash(ctx, s.db, account.ID, hash, now); err != nil {
			return domain.AuthResult{}, err
		}
		account.PasswordHash = hash
		account.UpdatedAt = now
		s.log.Warn("service account password replaced on login",
			zap.String("user_id", userID),
			zap.String("service_key", serviceKey),
			zap.String("account_id", account.ID.String()),
			zap.Bool("malformed_hash", errors.Is(err, password.ErrMalformedHash)),
		)
	}

	return domain.AuthResult{Account: *account}, nil
}

func (s *Service) GetForService(ctx context.Context, userID, serviceKey string, id snowflake.ID) (domain.Account, error) {
	key, _ := s.resolveService(ctx, serviceKey)
	account, err := s.repo.FindByID(ctx, s.db, strings.TrimSpace(userID), id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil || account.ServiceKey != key {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) create(ctx context.Context, userID, serviceKey, serviceName, username, email, plain string) (domain.Account, error) {
	hash, err := password.Hash(plain)
	if err != nil {
		return domain.Account{}, err
	}
	now := s.clock.Now()
	account := domain.Account{
		ID:            s.genID.Generate(),
		UserID:        userID,
		ServiceKey:    serviceKey,
		ServiceName:   serviceName,
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		AcceptedTerms: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

// resolveService maps a requested key onto the catalog entry when one exists.
// Unknown keys are kept as given and double as the display name.
func (s *Service) resolveService(ctx context.Context, raw string) (string, string) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", ""
	}
	if entry, err := s.catalog.SelectService(ctx, key); err == nil {
		return entry.Key, entry.Name
	}
	return strings.ToLower(key), key
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidRequest
	}
	if !strings.Contains(email, "@") {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		return "user"
	}
	return name
}
