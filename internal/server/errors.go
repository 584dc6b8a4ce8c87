package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/pxwallet/internal/checkout/domain"
	escrowdomain "github.com/smallbiznis/pxwallet/internal/escrow/domain"
	"github.com/smallbiznis/pxwallet/internal/identity"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	transferdomain "github.com/smallbiznis/pxwallet/internal/transfer/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string                    `json:"type"`
	Message   string                    `json:"message"`
	Errors    []ValidationError         `json:"errors,omitempty"`
	Step      checkoutdomain.Step       `json:"step,omitempty"`
	Selection *checkoutdomain.Selection `json:"selection,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// bindError turns a gin binding failure into field level validation errors.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Field:   fieldName(fe),
				Code:    fe.Tag(),
				Message: fieldMessage(fe),
			})
		}
		return &ValidationErrors{Errors: out}
	}
	if errors.Is(err, money.ErrInvalidAmount) {
		return newValidationError("amount", "invalid_amount", "amount must be a decimal number")
	}
	return invalidRequestError()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func fieldName(fe validator.FieldError) string {
	if name := strings.TrimSpace(fe.Field()); name != "" {
		return name
	}
	return "request"
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "pxid":
		return "must be a wallet public id like px-1a2b3c"
	case "money":
		return "must be a positive amount with at most two decimals"
	case "gte", "lte", "max", "min":
		return "is out of range"
	default:
		return "invalid value"
	}
}

func classifyErrorForLog(err error) string {
	_, payload := mapError(err)
	return payload.Type
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	status, payload := mapDomainError(err)

	var stepErr *checkoutdomain.StepError
	if errors.As(err, &stepErr) {
		payload.Step = stepErr.Step
		selection := stepErr.Selection
		payload.Selection = &selection
	}
	return status, payload
}

func mapDomainError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, walletdomain.ErrInsufficientFunds),
		errors.Is(err, walletdomain.ErrEscrowBalanceTooLow):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_funds",
			Message: insufficientFundsMessage(err),
		}
	case errors.Is(err, transferdomain.ErrSelfTransfer):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "self_transfer",
			Message: "you cannot transfer to your own wallet",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrMissingToken),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, serviceaccountdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, subscriptiondomain.ErrAlreadyActive),
		errors.Is(err, serviceaccountdomain.ErrAccountExists),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, walletdomain.ErrInvalidAmount),
		errors.Is(err, walletdomain.ErrInvalidPublicID),
		errors.Is(err, walletdomain.ErrInvalidUser),
		errors.Is(err, escrowdomain.ErrInvalidDelta),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, serviceaccountdomain.ErrInvalidRequest),
		errors.Is(err, serviceaccountdomain.ErrInvalidEmail),
		errors.Is(err, serviceaccountdomain.ErrPasswordMismatch),
		errors.Is(err, serviceaccountdomain.ErrTermsNotAccepted),
		errors.Is(err, checkoutdomain.ErrMissingSelection),
		errors.Is(err, checkoutdomain.ErrTrialNotEligible),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, walletdomain.ErrNotFound),
		errors.Is(err, escrowdomain.ErrNotFound),
		errors.Is(err, transferdomain.ErrReceiverNotFound),
		errors.Is(err, serviceaccountdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrServiceNotFound),
		errors.Is(err, catalogdomain.ErrPlanNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode picks the most specific sentinel in the chain.
func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		walletdomain.ErrInvalidPublicID,
		walletdomain.ErrInvalidAmount,
		money.ErrInvalidAmount,
		ledgerdomain.ErrInvalidAmount,
		serviceaccountdomain.ErrInvalidEmail,
		serviceaccountdomain.ErrPasswordMismatch,
		serviceaccountdomain.ErrTermsNotAccepted,
		checkoutdomain.ErrMissingSelection,
		checkoutdomain.ErrTrialNotEligible,
		pagination.ErrInvalidPageToken,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "invalid_request"
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_amount":
		return "amount"
	case "invalid_public_id":
		return "target_public_id"
	case "invalid_email":
		return "email"
	case "passwords_do_not_match":
		return "confirm_password"
	case "terms_not_accepted":
		return "accepted_terms"
	case "missing_checkout_selection":
		return "selection"
	case "free_trial_not_eligible":
		return "plan_code"
	case "invalid_page_token":
		return "page_token"
	default:
		return "request"
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_amount":
		return "amount must be greater than zero"
	case "invalid_public_id":
		return "wallet public id is not valid"
	case "invalid_email":
		return "email address is not valid"
	case "passwords_do_not_match":
		return "passwords do not match"
	case "terms_not_accepted":
		return "terms and conditions must be accepted"
	case "missing_checkout_selection":
		return "checkout selection is incomplete"
	case "free_trial_not_eligible":
		return "free trial is not available for this account"
	case "invalid_page_token":
		return "page token is not valid"
	default:
		return "invalid request"
	}
}

func insufficientFundsMessage(err error) string {
	if errors.Is(err, walletdomain.ErrEscrowBalanceTooLow) {
		return "escrow account balance is too low"
	}
	return "insufficient wallet balance"
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, subscriptiondomain.ErrAlreadyActive):
		return "an active subscription for this plan already exists"
	case errors.Is(err, serviceaccountdomain.ErrAccountExists):
		return "a service account with this email already exists"
	default:
		return "subscription cannot change to the requested status"
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, transferdomain.ErrReceiverNotFound):
		return "recipient wallet not found"
	case errors.Is(err, subscriptiondomain.ErrNotFound):
		return "subscription not found"
	case errors.Is(err, serviceaccountdomain.ErrNotFound):
		return "service account not found"
	case errors.Is(err, catalogdomain.ErrServiceNotFound):
		return "service not found"
	case errors.Is(err, catalogdomain.ErrPlanNotFound):
		return "plan not found"
	default:
		return "not found"
	}
}
