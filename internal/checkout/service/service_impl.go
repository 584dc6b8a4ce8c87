package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
	"github.com/smallbiznis/pxwallet/internal/checkout/domain"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/internal/providers/pdf"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Billing       *config.BillingConfigHolder
	Catalog       catalogdomain.Service
	Accounts      serviceaccountdomain.Service
	Subscriptions subscriptiondomain.Service
	Wallets       walletdomain.Store
	LedgerSvc     ledgerdomain.Service
	Renderer      pdf.Renderer        `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	billing       *config.BillingConfigHolder
	catalog       catalogdomain.Service
	accounts      serviceaccountdomain.Service
	subscriptions subscriptiondomain.Service
	wallets       walletdomain.Store
	ledgerSvc     ledgerdomain.Service
	renderer      pdf.Renderer
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	renderer := p.Renderer
	if renderer == nil {
		renderer = pdf.New()
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("checkout.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		billing:       p.Billing,
		catalog:       p.Catalog,
		accounts:      p.Accounts,
		subscriptions: p.Subscriptions,
		wallets:       p.Wallets,
		ledgerSvc:     p.LedgerSvc,
		renderer:      renderer,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) ListServices(ctx context.Context) []catalogdomain.ServiceEntry {
	return s.catalog.ListServices(ctx)
}

func (s *Service) SelectService(ctx context.Context, key string) (catalogdomain.ServiceEntry, error) {
	entry, err := s.catalog.SelectService(ctx, key)
	if err != nil {
		return catalogdomain.ServiceEntry{}, &domain.StepError{Step: domain.StepSelectService, Err: err}
	}
	return entry, nil
}

func (s *Service) Register(ctx context.Context, req serviceaccountdomain.RegisterRequest) (serviceaccountdomain.AuthResult, error) {
	res, err := s.accounts.Register(ctx, req)
	if err != nil {
		return res, &domain.StepError{
			Step:      domain.StepAuthenticate,
			Selection: domain.Selection{ServiceKey: req.ServiceKey},
			Err:       err,
		}
	}
	return res, nil
}

func (s *Service) Login(ctx context.Context, req serviceaccountdomain.LoginRequest) (serviceaccountdomain.AuthResult, error) {
	res, err := s.accounts.Login(ctx, req)
	if err != nil {
		return res, &domain.StepError{
			Step:      domain.StepAuthenticate,
			Selection: domain.Selection{ServiceKey: req.ServiceKey},
			Err:       err,
		}
	}
	return res, nil
}

func (s *Service) Plans(ctx context.Context, req domain.PlansRequest) (domain.PlansResponse, error) {
	sel := req.Selection
	entry, account, err := s.resolveAccount(ctx, req.UserID, sel)
	if err != nil {
		return domain.PlansResponse{}, err
	}

	active, err := s.subscriptions.ActivePlanNames(ctx, account.UserID, entry.Key, account.Email)
	if err != nil {
		return domain.PlansResponse{}, &domain.StepError{Step: domain.StepSelectPlan, Selection: sel, Err: err}
	}

	plans, err := s.catalog.Plans(ctx, entry.Key)
	if err != nil {
		return domain.PlansResponse{}, &domain.StepError{Step: domain.StepSelectService, Selection: sel, Err: err}
	}

	eligible, err := s.trialEligible(ctx, sel, account)
	if err != nil {
		return domain.PlansResponse{}, &domain.StepError{Step: domain.StepSelectPlan, Selection: sel, Err: err}
	}
	if eligible {
		trial, err := s.catalog.FreeTrialPlan(ctx, entry.Key)
		if err == nil {
			plans = append([]catalogdomain.Plan{trial}, plans...)
		}
	}

	seed, _ := entry.SeedPlan()
	quotes := make([]domain.Quote, 0, len(plans))
	for _, plan := range plans {
		if active[plan.Name] {
			continue
		}
		quotes = append(quotes, s.quote(plan, seed))
	}

	return domain.PlansResponse{
		Service:   entry,
		Account:   account,
		Plans:     quotes,
		Selection: sel,
	}, nil
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	res, err := s.checkout(ctx, req)
	s.obsMetrics.RecordCheckout(ctx, strings.ToLower(strings.TrimSpace(req.PlanCode)), checkoutOutcome(err))
	return res, err
}

func (s *Service) checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	sel := req.Selection
	if strings.TrimSpace(sel.PlanCode) == "" {
		return domain.CheckoutResult{}, &domain.StepError{Step: domain.StepSelectService, Selection: sel, Err: domain.ErrMissingSelection}
	}

	entry, account, err := s.resolveAccount(ctx, req.UserID, sel)
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	_, plan, err := s.catalog.ResolvePlan(ctx, entry.Key, sel.PlanCode)
	if err != nil {
		return domain.CheckoutResult{}, &domain.StepError{Step: domain.StepSelectPlan, Selection: sel, Err: err}
	}
	freeTrial := plan.Code == catalogdomain.PlanCodeFreeTrial
	if freeTrial {
		eligible, err := s.trialEligible(ctx, sel, account)
		if err != nil {
			return domain.CheckoutResult{}, &domain.StepError{Step: domain.StepSelectPlan, Selection: sel, Err: err}
		}
		if !eligible {
			return domain.CheckoutResult{}, &domain.StepError{Step: domain.StepSelectPlan, Selection: sel, Err: domain.ErrTrialNotEligible}
		}
	}

	seed, _ := entry.SeedPlan()
	quote := s.quote(plan, seed)

	wallet, err := s.wallets.GetOrCreate(ctx, account.UserID)
	if err != nil {
		return domain.CheckoutResult{}, &domain.StepError{Step: domain.StepCheckout, Selection: sel, Err: err}
	}
	if quote.TotalPrice.IsPositive() && wallet.Balance.LessThan(quote.TotalPrice) {
		return domain.CheckoutResult{}, &domain.StepError{Step: domain.StepCheckout, Selection: sel, Err: walletdomain.ErrInsufficientFunds}
	}

	now := s.clock.Now()
	nextBilling := subscriptiondomain.AddMonths(now, plan.DurationMonths)
	sub := subscriptiondomain.Subscription{
		ID:                   s.genID.Generate(),
		UserID:               account.UserID,
		ServiceKey:           entry.Key,
		ServiceName:          entry.Name,
		PlanCode:             plan.Code,
		PlanName:             plan.Name,
		PlanDurationMonths:   plan.DurationMonths,
		PlanMembers:          plan.Members,
		BasePrice:            plan.BasePrice,
		GSTAmount:            quote.GSTAmount,
		TotalPrice:           quote.TotalPrice,
		MonthlyCost:          quote.MonthlyCost,
		ServiceAccountID:     account.ID,
		ExternalAccountEmail: account.Email,
		FreeTrialTaken:       freeTrial,
		NextBillingDate:      datatypes.Date(nextBilling),
		Status:               subscriptiondomain.StatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if freeTrial {
		ends := nextBilling
		sub.FreeTrialEndsAt = &ends
	}

	var entryTxn *ledgerdomain.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.subscriptions.FindActive(ctx, tx, account.UserID, entry.Key, account.Email, plan.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrAlreadyActive
		}

		if quote.TotalPrice.IsPositive() {
			if _, err := s.wallets.Debit(ctx, tx, wallet.ID, quote.TotalPrice); err != nil {
				return err
			}
		}
		if err := s.subscriptions.Create(ctx, tx, &sub); err != nil {
			return err
		}
		if !quote.TotalPrice.IsPositive() {
			return nil
		}
		txn, err := s.ledgerSvc.Append(ctx, tx, ledgerdomain.Entry{
			UserID:        wallet.UserID,
			WalletID:      wallet.ID,
			Amount:        quote.TotalPrice,
			Kind:          ledgerdomain.KindDebit,
			ReferenceType: ledgerdomain.ReferenceSubscriptionPurchase,
			ReferenceID:   sub.ID,
			Description:   fmt.Sprintf("Purchased %s - %s.", entry.Name, plan.Name),
			Status:        ledgerdomain.StatusSuccessful,
		})
		if err != nil {
			return err
		}
		entryTxn = &txn
		return nil
	})
	if err != nil {
		step := domain.StepCheckout
		if errors.Is(err, subscriptiondomain.ErrAlreadyActive) {
			step = domain.StepSelectPlan
		}
		return domain.CheckoutResult{}, &domain.StepError{Step: step, Selection: sel, Err: err}
	}

	message := fmt.Sprintf("%s subscription purchased successfully", entry.Name)
	if freeTrial {
		message = fmt.Sprintf("%s free trial started", entry.Name)
	}
	s.log.Info("subscription purchased",
		zap.String("user_id", sub.UserID),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("service_key", sub.ServiceKey),
		zap.String("plan_code", sub.PlanCode),
		zap.Bool("free_trial", freeTrial),
	)
	return domain.CheckoutResult{
		Subscription: sub,
		Transaction:  entryTxn,
		FreeTrial:    freeTrial,
		Message:      message,
	}, nil
}

func (s *Service) Receipt(ctx context.Context, userID, subscriptionID string) ([]byte, error) {
	sub, err := s.subscriptions.Get(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	policy := s.billing.Get()
	return s.renderer.RenderReceipt(ctx, pdf.ReceiptData{
		ReceiptNumber:   sub.ID.String(),
		IssuedAt:        sub.CreatedAt.UTC().Format(time.DateOnly),
		AccountEmail:    sub.ExternalAccountEmail,
		ServiceName:     sub.ServiceName,
		PlanName:        sub.PlanName,
		Members:         sub.PlanMembers,
		DurationMonths:  sub.PlanDurationMonths,
		Status:          string(sub.Status),
		BasePrice:       sub.BasePrice.String(),
		GSTAmount:       sub.GSTAmount.String(),
		GSTRate:         policy.GSTRate.Shift(2).String() + "%",
		TotalPrice:      sub.TotalPrice.String(),
		MonthlyCost:     sub.MonthlyCost.String(),
		NextBillingDate: sub.DueOn().Format(time.DateOnly),
		FreeTrial:       sub.FreeTrialEndsAt != nil,
	})
}

// resolveAccount validates steps one and two of a selection.
func (s *Service) resolveAccount(ctx context.Context, userID string, sel domain.Selection) (catalogdomain.ServiceEntry, serviceaccountdomain.Account, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sel.ServiceKey) == "" {
		return catalogdomain.ServiceEntry{}, serviceaccountdomain.Account{},
			&domain.StepError{Step: domain.StepSelectService, Selection: sel, Err: domain.ErrMissingSelection}
	}
	entry, err := s.catalog.SelectService(ctx, sel.ServiceKey)
	if err != nil {
		return catalogdomain.ServiceEntry{}, serviceaccountdomain.Account{},
			&domain.StepError{Step: domain.StepSelectService, Selection: sel, Err: err}
	}

	accountID, err := snowflake.ParseString(strings.TrimSpace(sel.AccountID))
	if err != nil || accountID == 0 {
		return entry, serviceaccountdomain.Account{},
			&domain.StepError{Step: domain.StepAuthenticate, Selection: sel, Err: serviceaccountdomain.ErrNotFound}
	}
	account, err := s.accounts.GetForService(ctx, userID, entry.Key, accountID)
	if err != nil {
		return entry, serviceaccountdomain.Account{},
			&domain.StepError{Step: domain.StepAuthenticate, Selection: sel, Err: err}
	}
	return entry, account, nil
}

// trialEligible requires the client-carried flag and no earlier trial on this account.
func (s *Service) trialEligible(ctx context.Context, sel domain.Selection, account serviceaccountdomain.Account) (bool, error) {
	if !sel.TrialEligible {
		return false, nil
	}
	taken, err := s.subscriptions.HasTakenFreeTrial(ctx, account.UserID, account.ServiceKey, account.Email)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *Service) quote(plan catalogdomain.Plan, seed catalogdomain.Plan) domain.Quote {
	if plan.Code == catalogdomain.PlanCodeFreeTrial {
		return domain.Quote{
			Plan:        plan,
			GSTAmount:   money.Zero,
			TotalPrice:  money.Zero,
			MonthlyCost: seed.BasePrice.DivInt(seed.DurationMonths),
		}
	}
	gst := plan.BasePrice.MulRate(s.billing.Get().GSTRate)
	return domain.Quote{
		Plan:        plan,
		GSTAmount:   gst,
		TotalPrice:  plan.BasePrice.Add(gst),
		MonthlyCost: plan.BasePrice.DivInt(plan.DurationMonths),
	}
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "purchased"
	case errors.Is(err, walletdomain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, subscriptiondomain.ErrAlreadyActive):
		return "already_active"
	default:
		var stepErr *domain.StepError
		if errors.As(err, &stepErr) && stepErr.Step < domain.StepCheckout {
			return "rejected"
		}
		return "failed"
	}
}
