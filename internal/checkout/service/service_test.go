package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/pxwallet/internal/catalog/service"
	"github.com/smallbiznis/pxwallet/internal/checkout/domain"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	escrowrepo "github.com/smallbiznis/pxwallet/internal/escrow/repository"
	escrowservice "github.com/smallbiznis/pxwallet/internal/escrow/service"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/pxwallet/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/pxwallet/internal/ledger/service"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	serviceaccountrepo "github.com/smallbiznis/pxwallet/internal/serviceaccount/repository"
	serviceaccountservice "github.com/smallbiznis/pxwallet/internal/serviceaccount/service"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/pxwallet/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/pxwallet/internal/subscription/service"
	"github.com/smallbiznis/pxwallet/internal/testutil"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/pxwallet/internal/wallet/repository"
	walletservice "github.com/smallbiznis/pxwallet/internal/wallet/service"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc           domain.Service
	wallets       walletdomain.Service
	ledger        ledgerdomain.Service
	subscriptions subscriptiondomain.Service
}

func newFixture(t *testing.T) fixture {
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingPolicy())

	catalog, err := catalogservice.NewService(catalogservice.Params{Log: log, Billing: billing})
	require.NoError(t, err)

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: ledgerrepo.Provide()})
	escrowSvc := escrowservice.NewService(escrowservice.Params{Log: log, GenID: node, Clock: clk, Repo: escrowrepo.Provide()})
	wallets := walletservice.NewService(walletservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: walletrepo.Provide(),
		EscrowSvc: escrowSvc, LedgerSvc: ledgerSvc, Billing: billing,
	})
	accounts := serviceaccountservice.NewService(serviceaccountservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: serviceaccountrepo.Provide(),
		Catalog: catalog, Config: config.Config{ServiceAccountPermissiveLogin: true},
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB: conn, Log: log, Clock: clk, Repo: subscriptionrepo.Provide(),
	})

	svc := NewService(Params{
		DB:            conn,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Billing:       billing,
		Catalog:       catalog,
		Accounts:      accounts,
		Subscriptions: subscriptions,
		Wallets:       wallets,
		LedgerSvc:     ledgerSvc,
	})
	return fixture{svc: svc, wallets: wallets, ledger: ledgerSvc, subscriptions: subscriptions}
}

// register walks steps one and two and returns the selection for step three.
func (f fixture) register(t *testing.T, serviceKey string, balance int64) domain.Selection {
	t.Helper()
	ctx := context.Background()

	entry, err := f.svc.SelectService(ctx, serviceKey)
	require.NoError(t, err)

	res, err := f.svc.Register(ctx, serviceaccountdomain.RegisterRequest{
		UserID:          "user-1",
		ServiceKey:      entry.Key,
		ServiceName:     entry.Name,
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "pw",
		ConfirmPassword: "pw",
		AcceptedTerms:   true,
	})
	require.NoError(t, err)

	if balance > 0 {
		_, err = f.wallets.TopUp(ctx, "user-1", money.FromInt(balance))
		require.NoError(t, err)
	}
	return domain.Selection{
		ServiceKey:    entry.Key,
		AccountID:     res.Account.ID.String(),
		TrialEligible: res.TrialEligible,
	}
}

func (f fixture) balance(t *testing.T) string {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	return w.Balance.String()
}

func requireStep(t *testing.T, err error, step domain.Step, target error) *domain.StepError {
	t.Helper()
	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr), "expected StepError, got %v", err)
	assert.Equal(t, step, stepErr.Step)
	assert.ErrorIs(t, err, target)
	return stepErr
}

func TestCheckoutInsufficientFundsLeavesWalletUntouched(t *testing.T) {
	f := newFixture(t)
	sel := f.register(t, "netflix", 500)
	sel.PlanCode = "standard"

	_, err := f.svc.Checkout(context.Background(), domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	stepErr := requireStep(t, err, domain.StepCheckout, walletdomain.ErrInsufficientFunds)
	assert.Equal(t, "standard", stepErr.Selection.PlanCode)
	assert.Equal(t, sel.AccountID, stepErr.Selection.AccountID)

	assert.Equal(t, "500.00", f.balance(t))
	subs, err := f.subscriptions.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCheckoutDebitsWalletAndRecordsPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.register(t, "netflix", 1000)
	sel.PlanCode = "standard"

	res, err := f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)

	assert.Equal(t, "411.18", f.balance(t))
	assert.Equal(t, subscriptiondomain.StatusActive, res.Subscription.Status)
	assert.Equal(t, "499.00", res.Subscription.BasePrice.String())
	assert.Equal(t, "89.82", res.Subscription.GSTAmount.String())
	assert.Equal(t, "588.82", res.Subscription.TotalPrice.String())
	assert.Equal(t, "499.00", res.Subscription.MonthlyCost.String())
	assert.Equal(t, "alice@example.com", res.Subscription.ExternalAccountEmail)
	// Jan 31 plus one month normalizes past the end of February.
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), res.Subscription.DueOn())
	assert.Equal(t, "Netflix subscription purchased successfully", res.Message)

	require.NotNil(t, res.Transaction)
	assert.Equal(t, ledgerdomain.KindDebit, res.Transaction.Kind)
	assert.Equal(t, ledgerdomain.ReferenceSubscriptionPurchase, res.Transaction.ReferenceType)
	assert.Equal(t, res.Subscription.ID, res.Transaction.ReferenceID)
	assert.Equal(t, "588.82", res.Transaction.Amount.String())
	assert.Equal(t, "Purchased Netflix - Standard.", res.Transaction.Description)

	recent, err := f.ledger.Recent(ctx, "user-1", 10)
	require.NoError(t, err)
	purchases := 0
	for _, txn := range recent {
		if txn.ReferenceType == ledgerdomain.ReferenceSubscriptionPurchase {
			purchases++
		}
	}
	assert.Equal(t, 1, purchases)

	// The same plan again conflicts and costs nothing.
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	requireStep(t, err, domain.StepSelectPlan, subscriptiondomain.ErrAlreadyActive)
	assert.Equal(t, "411.18", f.balance(t))
}

func TestCheckoutMultiMonthPlan(t *testing.T) {
	f := newFixture(t)
	sel := f.register(t, "amazon-prime", 2000)
	sel.PlanCode = "yearly"

	res, err := f.svc.Checkout(context.Background(), domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)
	assert.Equal(t, "124.92", res.Subscription.MonthlyCost.String())
	assert.Equal(t, "1768.82", res.Subscription.TotalPrice.String())
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), res.Subscription.DueOn())
	assert.Equal(t, "231.18", f.balance(t))
}

func TestFreeTrialOncePerAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.register(t, "netflix", 0)
	require.True(t, sel.TrialEligible)
	sel.PlanCode = catalogdomain.PlanCodeFreeTrial

	res, err := f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)
	assert.True(t, res.FreeTrial)
	assert.Nil(t, res.Transaction)
	assert.True(t, res.Subscription.TotalPrice.IsZero())
	assert.True(t, res.Subscription.FreeTrialTaken)
	assert.Equal(t, "499.00", res.Subscription.MonthlyCost.String())
	require.NotNil(t, res.Subscription.FreeTrialEndsAt)
	assert.Equal(t, res.Subscription.DueOn(), *res.Subscription.FreeTrialEndsAt)
	assert.Equal(t, "Netflix free trial started", res.Message)
	assert.Equal(t, "0.00", f.balance(t))

	recent, err := f.ledger.Recent(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	// Cancelling frees the plan name but not the trial.
	_, err = f.subscriptions.Cancel(ctx, "user-1", res.Subscription.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	requireStep(t, err, domain.StepSelectPlan, domain.ErrTrialNotEligible)

	// Without the flag there is no trial at all.
	sel.TrialEligible = false
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	requireStep(t, err, domain.StepSelectPlan, domain.ErrTrialNotEligible)
}

func TestPlansHidesActiveAndOffersTrial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.register(t, "netflix", 1000)

	res, err := f.svc.Plans(ctx, domain.PlansRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)
	codes := make([]string, 0, len(res.Plans))
	for _, q := range res.Plans {
		codes = append(codes, q.Code)
	}
	assert.Equal(t, []string{"free-trial", "basic", "standard", "premium", "mobile"}, codes)
	assert.Equal(t, "588.82", res.Plans[2].TotalPrice.String())
	assert.True(t, res.Plans[0].TotalPrice.IsZero())

	sel.PlanCode = "standard"
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)

	sel.PlanCode = ""
	sel.TrialEligible = false
	res, err = f.svc.Plans(ctx, domain.PlansRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)
	for _, q := range res.Plans {
		assert.NotEqual(t, "Standard", q.Name)
		assert.NotEqual(t, catalogdomain.PlanCodeFreeTrial, q.Code)
	}
	assert.Len(t, res.Plans, 3)
}

func TestStepErrorsBounceBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.register(t, "netflix", 1000)

	_, err := f.svc.SelectService(ctx, "friendster")
	requireStep(t, err, domain.StepSelectService, catalogdomain.ErrServiceNotFound)

	bad := sel
	bad.ServiceKey = "friendster"
	bad.PlanCode = "standard"
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: bad})
	requireStep(t, err, domain.StepSelectService, catalogdomain.ErrServiceNotFound)

	// The account belongs to netflix, not spotify.
	wrongService := sel
	wrongService.ServiceKey = "spotify"
	wrongService.PlanCode = "standard"
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: wrongService})
	requireStep(t, err, domain.StepAuthenticate, serviceaccountdomain.ErrNotFound)

	otherUser := sel
	otherUser.PlanCode = "standard"
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-2", Selection: otherUser})
	requireStep(t, err, domain.StepAuthenticate, serviceaccountdomain.ErrNotFound)

	unknownPlan := sel
	unknownPlan.PlanCode = "ultimate"
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: unknownPlan})
	requireStep(t, err, domain.StepSelectPlan, catalogdomain.ErrPlanNotFound)

	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	requireStep(t, err, domain.StepSelectService, domain.ErrMissingSelection)

	_, err = f.svc.Login(ctx, serviceaccountdomain.LoginRequest{UserID: "user-1", ServiceKey: "netflix", Email: "nope", Password: "pw", AcceptedTerms: true})
	requireStep(t, err, domain.StepAuthenticate, serviceaccountdomain.ErrInvalidEmail)
}

func TestCheckoutChargesCatalogPlanOverDerivedTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.register(t, "netflix", 1000)
	sel.PlanCode = "premium"

	res, err := f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)
	assert.Equal(t, "Premium", res.Subscription.PlanName)
	assert.Equal(t, "649.00", res.Subscription.BasePrice.String())
	assert.Equal(t, "116.82", res.Subscription.GSTAmount.String())
	assert.Equal(t, "765.82", res.Subscription.TotalPrice.String())
	assert.Equal(t, "234.18", f.balance(t))
}

func TestReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.register(t, "netflix", 1000)
	sel.PlanCode = "premium"

	res, err := f.svc.Checkout(ctx, domain.CheckoutRequest{UserID: "user-1", Selection: sel})
	require.NoError(t, err)

	doc, err := f.svc.Receipt(ctx, "user-1", res.Subscription.ID.String())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = f.svc.Receipt(ctx, "user-2", res.Subscription.ID.String())
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotFound)
}
