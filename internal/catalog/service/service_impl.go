package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/pxwallet/internal/catalog/domain"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type Params struct {
	fx.In

	Log     *zap.Logger
	Billing *config.BillingConfigHolder
}

type Service struct {
	log      *zap.Logger
	billing  *config.BillingConfigHolder
	services []domain.ServiceEntry
	index    map[string]int
}

type catalogFile struct {
	Services []serviceRow `mapstructure:"services"`
}

type serviceRow struct {
	Key   string    `mapstructure:"key"`
	Name  string    `mapstructure:"name"`
	Plans []planRow `mapstructure:"plans"`
}

type planRow struct {
	Code           string `mapstructure:"code"`
	Name           string `mapstructure:"name"`
	DurationMonths int    `mapstructure:"durationMonths"`
	Members        int    `mapstructure:"members"`
	BasePrice      string `mapstructure:"basePrice"`
}

func NewService(p Params) (domain.Service, error) {
	entries, err := Load(bytes.NewReader(embeddedCatalog))
	if err != nil {
		return nil, err
	}
	svc := newService(p.Log, p.Billing, entries)
	svc.log.Info("service catalog loaded", zap.Int("services", len(entries)))
	return svc, nil
}

func newService(log *zap.Logger, billing *config.BillingConfigHolder, entries []domain.ServiceEntry) *Service {
	index := make(map[string]int, len(entries))
	for i, entry := range entries {
		index[entry.Key] = i
	}
	return &Service{
		log:      log.Named("catalog.service"),
		billing:  billing,
		services: entries,
		index:    index,
	}
}

// Load decodes a YAML catalog document.
func Load(r io.Reader) ([]domain.ServiceEntry, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}

	var raw catalogFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}

	seen := make(map[string]struct{}, len(raw.Services))
	entries := make([]domain.ServiceEntry, 0, len(raw.Services))
	for _, row := range raw.Services {
		name := strings.TrimSpace(row.Name)
		key := strings.TrimSpace(row.Key)
		if key == "" {
			key = name
		}
		key = slug.Make(key)
		if key == "" || name == "" {
			return nil, fmt.Errorf("%w: service without key or name", domain.ErrInvalidCatalog)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate service %q", domain.ErrInvalidCatalog, key)
		}
		seen[key] = struct{}{}

		if len(row.Plans) == 0 {
			return nil, fmt.Errorf("%w: service %q has no plans", domain.ErrInvalidCatalog, key)
		}
		plans := make([]domain.Plan, 0, len(row.Plans))
		for _, p := range row.Plans {
			price, err := money.Parse(p.BasePrice)
			if err != nil || price.IsNegative() {
				return nil, fmt.Errorf("%w: %s/%s base price %q", domain.ErrInvalidCatalog, key, p.Code, p.BasePrice)
			}
			code := strings.ToLower(strings.TrimSpace(p.Code))
			if code == "" || code == domain.PlanCodeFreeTrial {
				return nil, fmt.Errorf("%w: %s has an invalid plan code %q", domain.ErrInvalidCatalog, key, p.Code)
			}
			plans = append(plans, domain.Plan{
				Code:           code,
				Name:           strings.TrimSpace(p.Name),
				DurationMonths: max(1, p.DurationMonths),
				Members:        max(1, p.Members),
				BasePrice:      price,
			})
		}

		entries = append(entries, domain.ServiceEntry{Key: key, Name: name, Plans: plans})
	}
	return entries, nil
}

func (s *Service) ListServices(ctx context.Context) []domain.ServiceEntry {
	out := make([]domain.ServiceEntry, len(s.services))
	copy(out, s.services)
	return out
}

func (s *Service) SelectService(ctx context.Context, key string) (domain.ServiceEntry, error) {
	i, ok := s.index[slug.Make(strings.TrimSpace(key))]
	if !ok {
		return domain.ServiceEntry{}, domain.ErrServiceNotFound
	}
	return s.services[i], nil
}

func (s *Service) Plans(ctx context.Context, key string) ([]domain.Plan, error) {
	entry, err := s.SelectService(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.plansFor(entry), nil
}

func (s *Service) ResolvePlan(ctx context.Context, key, code string) (domain.ServiceEntry, domain.Plan, error) {
	entry, err := s.SelectService(ctx, key)
	if err != nil {
		return domain.ServiceEntry{}, domain.Plan{}, err
	}

	code = strings.ToLower(strings.TrimSpace(code))
	if code == domain.PlanCodeFreeTrial {
		plan, err := s.freeTrialFor(entry)
		return entry, plan, err
	}
	for _, plan := range s.plansFor(entry) {
		if plan.Code == code {
			return entry, plan, nil
		}
	}
	return entry, domain.Plan{}, domain.ErrPlanNotFound
}

func (s *Service) FreeTrialPlan(ctx context.Context, key string) (domain.Plan, error) {
	entry, err := s.SelectService(ctx, key)
	if err != nil {
		return domain.Plan{}, err
	}
	return s.freeTrialFor(entry)
}

func (s *Service) freeTrialFor(entry domain.ServiceEntry) (domain.Plan, error) {
	seed, ok := entry.SeedPlan()
	if !ok {
		return domain.Plan{}, domain.ErrPlanNotFound
	}
	return domain.Plan{
		Code:           domain.PlanCodeFreeTrial,
		Name:           "Free Trial",
		DurationMonths: 1,
		Members:        seed.Members,
		BasePrice:      money.Zero,
	}, nil
}

func (s *Service) plansFor(entry domain.ServiceEntry) []domain.Plan {
	seed, ok := entry.SeedPlan()
	if !ok {
		return nil
	}
	policy := s.billing.Get()

	own := make(map[string]domain.Plan, len(entry.Plans))
	for _, p := range entry.Plans {
		own[p.Code] = p
	}

	// A catalog plan with a tier code is sold as is; only missing tiers are derived.
	tiers := []domain.Plan{
		{
			Code:           domain.PlanCodeBasic,
			Name:           "Basic",
			DurationMonths: 1,
			Members:        1,
			BasePrice:      seed.BasePrice.MulRate(policy.BasicMultiplier).RoundUnits(),
		},
		{
			Code:           domain.PlanCodeStandard,
			Name:           "Standard",
			DurationMonths: 1,
			Members:        2,
			BasePrice:      seed.BasePrice,
		},
		{
			Code:           domain.PlanCodePremium,
			Name:           "Premium",
			DurationMonths: 1,
			Members:        4,
			BasePrice:      seed.BasePrice.MulRate(policy.PremiumMultiplier).RoundUnits(),
		},
	}
	plans := make([]domain.Plan, 0, len(tiers)+len(entry.Plans))
	for _, tier := range tiers {
		if p, ok := own[tier.Code]; ok {
			tier = p
		}
		plans = append(plans, tier)
	}
	for _, p := range entry.Plans {
		if isTierCode(p.Code) {
			continue
		}
		plans = append(plans, p)
	}
	return plans
}

func isTierCode(code string) bool {
	switch code {
	case domain.PlanCodeBasic, domain.PlanCodeStandard, domain.PlanCodePremium:
		return true
	}
	return false
}
