package service

import (
	"context"
	"testing"
	"time"

	catalogservice "github.com/smallbiznis/pxwallet/internal/catalog/service"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/password"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/repository"
	"github.com/smallbiznis/pxwallet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestService(t *testing.T, permissive bool) (domain.Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	catalog, err := catalogservice.NewService(catalogservice.Params{
		Log:     zap.NewNop(),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingPolicy()),
	})
	require.NoError(t, err)

	svc := NewService(Params{
		DB:      testutil.NewDB(t),
		Log:     log,
		GenID:   testutil.NewNode(t),
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:    repository.Provide(),
		Catalog: catalog,
		Config:  config.Config{ServiceAccountPermissiveLogin: permissive},
	})
	return svc, logs
}

func validRegister() domain.RegisterRequest {
	return domain.RegisterRequest{
		UserID:          "user-1",
		ServiceKey:      "netflix",
		ServiceName:     "Netflix",
		Username:        "alice",
		Email:           "  Alice@Example.com ",
		Password:        "pw-1",
		ConfirmPassword: "pw-1",
		AcceptedTerms:   true,
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	res, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.TrialEligible)
	assert.Equal(t, "alice@example.com", res.Account.Email)
	assert.NoError(t, password.Verify("pw-1", res.Account.PasswordHash))

	_, err = svc.Register(ctx, validRegister())
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	// Same email on another service is a different account.
	other := validRegister()
	other.ServiceKey = "spotify"
	other.ServiceName = "Spotify"
	_, err = svc.Register(ctx, other)
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*domain.RegisterRequest)
		want   error
	}{
		{"missing username", func(r *domain.RegisterRequest) { r.Username = " " }, domain.ErrInvalidRequest},
		{"missing service name", func(r *domain.RegisterRequest) { r.ServiceName = "" }, domain.ErrInvalidRequest},
		{"email without at", func(r *domain.RegisterRequest) { r.Email = "alice.example.com" }, domain.ErrInvalidEmail},
		{"password mismatch", func(r *domain.RegisterRequest) { r.ConfirmPassword = "pw-2" }, domain.ErrPasswordMismatch},
		{"terms", func(r *domain.RegisterRequest) { r.AcceptedTerms = false }, domain.ErrTermsNotAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegister()
			tc.mutate(&req)
			_, err := svc.Register(ctx, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoginCreatesUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	res, err := svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "hbo-max",
		Email:         "bob@example.com",
		Password:      "pw",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.TrialEligible)
	assert.Equal(t, "bob", res.Account.Username)
	assert.Equal(t, "HBO Max", res.Account.ServiceName)

	again, err := svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "hbo-max",
		Email:         "BOB@example.com",
		Password:      "pw",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Account.ID, again.Account.ID)

	unknown, err := svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "Fancy-Service",
		Email:         "bob@example.com",
		Password:      "pw",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "fancy-service", unknown.Account.ServiceKey)
	assert.Equal(t, "Fancy-Service", unknown.Account.ServiceName)

	_, err = svc.Login(ctx, domain.LoginRequest{UserID: "user-1", ServiceKey: "hbo-max", Email: "bob@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrTermsNotAccepted)
}

func TestLoginWrongPasswordPermissive(t *testing.T) {
	svc, logs := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)

	res, err := svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "netflix",
		Email:         "alice@example.com",
		Password:      "something-else",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	assert.NoError(t, password.Verify("something-else", res.Account.PasswordHash))
	assert.Equal(t, 1, logs.FilterMessage("service account password replaced on login").Len())

	// The replaced credential is what is stored now.
	_, err = svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "netflix",
		Email:         "alice@example.com",
		Password:      "something-else",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("service account password replaced on login").Len())
}

func TestLoginWrongPasswordStrict(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "netflix",
		Email:         "alice@example.com",
		Password:      "something-else",
		AcceptedTerms: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	res, err := svc.Login(ctx, domain.LoginRequest{
		UserID:        "user-1",
		ServiceKey:    "netflix",
		Email:         "alice@example.com",
		Password:      "pw-1",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestGetForService(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	res, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)

	got, err := svc.GetForService(ctx, "user-1", "netflix", res.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Account.Email, got.Email)

	_, err = svc.GetForService(ctx, "user-1", "spotify", res.Account.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetForService(ctx, "user-2", "netflix", res.Account.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
