package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/pxwallet/pkg/money"
)

const (
	PlanCodeBasic     = "basic"
	PlanCodeStandard  = "standard"
	PlanCodePremium   = "premium"
	PlanCodeFreeTrial = "free-trial"
)

// Plan is one purchasable option of a service.
type Plan struct {
	Code           string      `json:"code"`
	Name           string      `json:"plan_name"`
	DurationMonths int         `json:"duration_months"`
	Members        int         `json:"members"`
	BasePrice      money.Money `json:"base_price"`
}

// ServiceEntry is one subscribable third-party service.
type ServiceEntry struct {
	Key   string `json:"service_key"`
	Name  string `json:"service_name"`
	Plans []Plan `json:"plans"`
}

// SeedPlan is the plan recurring prices and tiers derive from:
// the "standard" plan when present, else the first one.
func (s ServiceEntry) SeedPlan() (Plan, bool) {
	for _, p := range s.Plans {
		if p.Code == PlanCodeStandard {
			return p, true
		}
	}
	if len(s.Plans) == 0 {
		return Plan{}, false
	}
	return s.Plans[0], true
}

type Service interface {
	ListServices(ctx context.Context) []ServiceEntry
	SelectService(ctx context.Context, key string) (ServiceEntry, error)
	// Plans lists basic, standard and premium (the catalog's own plan when it
	// defines that code, derived from the seed plan otherwise) followed by the
	// service's remaining plans.
	Plans(ctx context.Context, key string) ([]Plan, error)
	ResolvePlan(ctx context.Context, key, code string) (ServiceEntry, Plan, error)
	// FreeTrialPlan is the zero-priced one month plan offered to new accounts.
	FreeTrialPlan(ctx context.Context, key string) (Plan, error)
}

var (
	ErrServiceNotFound = errors.New("service_not_found")
	ErrPlanNotFound    = errors.New("plan_not_found")
	ErrInvalidCatalog  = errors.New("invalid_catalog")
)
