package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	UserID          string `json:"-"`
	ServiceKey      string `json:"service_key"`
	ServiceName     string `json:"service_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	AcceptedTerms   bool   `json:"accepted_terms"`
}

type LoginRequest struct {
	UserID        string `json:"-"`
	ServiceKey    string `json:"service_key"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

// AuthResult carries the account into the plan selection step.
type AuthResult struct {
	Account       Account `json:"account"`
	Created       bool    `json:"created"`
	TrialEligible bool    `json:"trial_eligible"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (AuthResult, error)
	// GetForService returns the user's account only when it belongs to serviceKey.
	GetForService(ctx context.Context, userID, serviceKey string, id snowflake.ID) (Account, error)
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrPasswordMismatch   = errors.New("passwords_do_not_match")
	ErrTermsNotAccepted   = errors.New("terms_not_accepted")
	ErrAccountExists      = errors.New("service_account_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNotFound           = errors.New("service_account_not_found")
)
