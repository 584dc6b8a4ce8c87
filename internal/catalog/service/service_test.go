package service

import (
	"context"
	"strings"
	"testing"

	"github.com/smallbiznis/pxwallet/internal/catalog/domain"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCatalog(t *testing.T) domain.Service {
	t.Helper()
	svc, err := NewService(Params{
		Log:     zap.NewNop(),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingPolicy()),
	})
	require.NoError(t, err)
	return svc
}

func planCodes(plans []domain.Plan) []string {
	codes := make([]string, 0, len(plans))
	for _, p := range plans {
		codes = append(codes, p.Code)
	}
	return codes
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	services := svc.ListServices(ctx)
	require.Len(t, services, 21)
	assert.Equal(t, "netflix", services[0].Key)
	assert.Equal(t, "masterclass", services[len(services)-1].Key)

	prime, err := svc.SelectService(ctx, "Amazon Prime")
	require.NoError(t, err)
	assert.Equal(t, "amazon-prime", prime.Key)
	assert.Equal(t, 12, prime.Plans[2].DurationMonths)
	assert.Equal(t, "1499.00", prime.Plans[2].BasePrice.String())

	_, err = svc.SelectService(ctx, "myspace")
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestPlansDeriveTiersFromSeed(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	// netflix defines standard and premium itself; only basic is derived.
	plans, err := svc.Plans(ctx, "netflix")
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "standard", "premium", "mobile"}, planCodes(plans))
	assert.Equal(t, "349.00", plans[0].BasePrice.String())
	assert.Equal(t, 1, plans[0].Members)
	assert.Equal(t, "499.00", plans[1].BasePrice.String())
	assert.Equal(t, 2, plans[1].Members)
	assert.Equal(t, "649.00", plans[2].BasePrice.String())
	assert.Equal(t, 4, plans[2].Members)

	// No "standard" plan: the first catalog plan seeds the tiers.
	plans, err = svc.Plans(ctx, "amazon-prime")
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "standard", "premium", "monthly", "quarterly", "yearly"}, planCodes(plans))
	assert.Equal(t, "209.00", plans[0].BasePrice.String())
	assert.Equal(t, "299.00", plans[1].BasePrice.String())
	assert.Equal(t, "404.00", plans[2].BasePrice.String())

	// hbo-max defines basic, so only premium is derived from its standard plan.
	plans, err = svc.Plans(ctx, "hbo-max")
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "standard", "premium", "ultimate"}, planCodes(plans))
	assert.Equal(t, "349.00", plans[0].BasePrice.String())
	assert.Equal(t, "Premium", plans[2].Name)
	assert.Equal(t, "674.00", plans[2].BasePrice.String())

	// Catalog plans keep their own names and prices over the derived tiers.
	plans, err = svc.Plans(ctx, "google-one")
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "standard", "premium"}, planCodes(plans))
	assert.Equal(t, "Basic 100 GB", plans[0].Name)
	assert.Equal(t, "130.00", plans[0].BasePrice.String())
	assert.Equal(t, "Premium 2 TB", plans[2].Name)
	assert.Equal(t, 5, plans[2].Members)
}

func TestResolvePlanPrefersCatalogCode(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	_, plan, err := svc.ResolvePlan(ctx, "netflix", "premium")
	require.NoError(t, err)
	assert.Equal(t, "Premium", plan.Name)
	assert.Equal(t, "649.00", plan.BasePrice.String())

	_, plan, err = svc.ResolvePlan(ctx, "google-one", "basic")
	require.NoError(t, err)
	assert.Equal(t, "Basic 100 GB", plan.Name)
	assert.Equal(t, "130.00", plan.BasePrice.String())

	_, plan, err = svc.ResolvePlan(ctx, "netflix", "basic")
	require.NoError(t, err)
	assert.Equal(t, "Basic", plan.Name)
	assert.Equal(t, "349.00", plan.BasePrice.String())
}

func TestResolvePlan(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	entry, plan, err := svc.ResolvePlan(ctx, "hbo-max", " Ultimate ")
	require.NoError(t, err)
	assert.Equal(t, "HBO Max", entry.Name)
	assert.Equal(t, "ultimate", plan.Code)
	assert.Equal(t, "699.00", plan.BasePrice.String())

	_, plan, err = svc.ResolvePlan(ctx, "amazon-prime", domain.PlanCodeFreeTrial)
	require.NoError(t, err)
	assert.True(t, plan.BasePrice.IsZero())
	assert.Equal(t, 1, plan.Members)
	assert.Equal(t, "Free Trial", plan.Name)

	trial, err := svc.FreeTrialPlan(ctx, "netflix")
	require.NoError(t, err)
	assert.Equal(t, 2, trial.Members)

	_, _, err = svc.ResolvePlan(ctx, "netflix", "ultimate")
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestLoadRejectsBrokenCatalogs(t *testing.T) {
	cases := map[string]string{
		"duplicate key": `
services:
  - { key: a, name: A, plans: [{ code: x, name: X, durationMonths: 1, members: 1, basePrice: "1" }] }
  - { key: a, name: B, plans: [{ code: x, name: X, durationMonths: 1, members: 1, basePrice: "1" }] }
`,
		"no plans": `
services:
  - { key: a, name: A, plans: [] }
`,
		"bad price": `
services:
  - { key: a, name: A, plans: [{ code: x, name: X, durationMonths: 1, members: 1, basePrice: "abc" }] }
`,
		"reserved code": `
services:
  - { key: a, name: A, plans: [{ code: free-trial, name: X, durationMonths: 1, members: 1, basePrice: "0" }] }
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
		})
	}

	entries, err := Load(strings.NewReader(`
services:
  - name: Some Service
    plans:
      - { code: solo, name: Solo, durationMonths: 0, members: 0, basePrice: "10.5" }
`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "some-service", entries[0].Key)
	assert.Equal(t, 1, entries[0].Plans[0].DurationMonths)
	assert.Equal(t, "10.50", entries[0].Plans[0].BasePrice.String())
}
