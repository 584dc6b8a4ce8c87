// Package domain describes the four-step subscription checkout flow.
//
// The flow keeps no server-side state: every request carries the selections
// resolved so far, and every failure names the step to return to.
package domain

import (
	"context"
	"errors"
	"fmt"

	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

type Step int

const (
	StepSelectService Step = 1
	StepAuthenticate  Step = 2
	StepSelectPlan    Step = 3
	StepCheckout      Step = 4
)

// Selection is what the client has chosen so far.
type Selection struct {
	ServiceKey    string `json:"service_key,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	PlanCode      string `json:"plan_code,omitempty"`
	TrialEligible bool   `json:"trial_eligible,omitempty"`
}

// StepError bounces the client back to Step keeping Selection.
type StepError struct {
	Step      Step
	Selection Selection
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("checkout step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Quote is a plan with its tax and recurring cost resolved.
type Quote struct {
	catalogdomain.Plan
	GSTAmount   money.Money `json:"gst_amount"`
	TotalPrice  money.Money `json:"total_price"`
	MonthlyCost money.Money `json:"monthly_cost"`
}

type PlansRequest struct {
	UserID string
	Selection
}

type PlansResponse struct {
	Service   catalogdomain.ServiceEntry   `json:"service"`
	Account   serviceaccountdomain.Account `json:"account"`
	Plans     []Quote                      `json:"plans"`
	Selection Selection                    `json:"selection"`
}

type CheckoutRequest struct {
	UserID string
	Selection
}

type CheckoutResult struct {
	Subscription subscriptiondomain.Subscription `json:"subscription"`
	Transaction  *ledgerdomain.Transaction       `json:"transaction,omitempty"`
	FreeTrial    bool                            `json:"free_trial"`
	Message      string                          `json:"message"`
}

type Service interface {
	ListServices(ctx context.Context) []catalogdomain.ServiceEntry
	SelectService(ctx context.Context, key string) (catalogdomain.ServiceEntry, error)
	Register(ctx context.Context, req serviceaccountdomain.RegisterRequest) (serviceaccountdomain.AuthResult, error)
	Login(ctx context.Context, req serviceaccountdomain.LoginRequest) (serviceaccountdomain.AuthResult, error)
	Plans(ctx context.Context, req PlansRequest) (PlansResponse, error)
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	// Receipt renders a PDF purchase receipt for one of the user's subscriptions.
	Receipt(ctx context.Context, userID, subscriptionID string) ([]byte, error)
}

var (
	ErrMissingSelection = errors.New("missing_checkout_selection")
	ErrTrialNotEligible = errors.New("free_trial_not_eligible")
)
