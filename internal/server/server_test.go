package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	auditrepo "github.com/smallbiznis/pxwallet/internal/audit/repository"
	auditservice "github.com/smallbiznis/pxwallet/internal/audit/service"
	catalogservice "github.com/smallbiznis/pxwallet/internal/catalog/service"
	checkoutdomain "github.com/smallbiznis/pxwallet/internal/checkout/domain"
	checkoutservice "github.com/smallbiznis/pxwallet/internal/checkout/service"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	escrowrepo "github.com/smallbiznis/pxwallet/internal/escrow/repository"
	escrowservice "github.com/smallbiznis/pxwallet/internal/escrow/service"
	"github.com/smallbiznis/pxwallet/internal/identity"
	ledgerrepo "github.com/smallbiznis/pxwallet/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/pxwallet/internal/ledger/service"
	"github.com/smallbiznis/pxwallet/internal/ratelimit"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	serviceaccountrepo "github.com/smallbiznis/pxwallet/internal/serviceaccount/repository"
	serviceaccountservice "github.com/smallbiznis/pxwallet/internal/serviceaccount/service"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/pxwallet/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/pxwallet/internal/subscription/service"
	"github.com/smallbiznis/pxwallet/internal/testutil"
	transferdomain "github.com/smallbiznis/pxwallet/internal/transfer/domain"
	transferrepo "github.com/smallbiznis/pxwallet/internal/transfer/repository"
	transferservice "github.com/smallbiznis/pxwallet/internal/transfer/service"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/pxwallet/internal/wallet/repository"
	walletservice "github.com/smallbiznis/pxwallet/internal/wallet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type testServer struct {
	srv     *Server
	wallets walletdomain.Service
}

func newTestServer(t *testing.T, cfg config.Config) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	transfers := transferservice.NewService(transferservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: transferrepo.Provide(),
		Wallets: wallets, LedgerSvc: ledgerSvc,
	})
	accounts := serviceaccountservice.NewService(serviceaccountservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: serviceaccountrepo.Provide(),
		Catalog: catalog, Config: cfg,
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB: conn, Log: log, Clock: clk, Repo: subscriptionrepo.Provide(),
	})
	checkout := checkoutservice.NewService(checkoutservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Billing: billing,
		Catalog: catalog, Accounts: accounts, Subscriptions: subscriptions,
		Wallets: wallets, LedgerSvc: ledgerSvc,
	})
	audits := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})

	engine, err := NewEngine(nil)
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		Log:             log,
		Identity:        identity.NewVerifier(identity.Params{Cfg: cfg, Log: log}),
		WalletSvc:       wallets,
		LedgerSvc:       ledgerSvc,
		TransferSvc:     transfers,
		CatalogSvc:      catalog,
		CheckoutSvc:     checkout,
		SubscriptionSvc: subscriptions,
		AuditSvc:        audits,
	})
	return testServer{srv: srv, wallets: wallets}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func (ts testServer) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") != "application/pdf" && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (ts testServer) topUp(t *testing.T, user, amount string) {
	t.Helper()
	rec, _ := ts.do(t, http.MethodPost, "/api/wallet/top-up", user, gin.H{"amount": amount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (ts testServer) publicID(t *testing.T, user string) string {
	t.Helper()
	wallet, err := ts.wallets.GetOrCreate(context.Background(), user)
	require.NoError(t, err)
	return wallet.PublicID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec, _ := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiresIdentity(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec, env := ts.do(t, http.MethodGet, "/api/wallet", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Type)
}

func TestBearerTokenWhenSecretConfigured(t *testing.T) {
	cfg := config.Config{AuthJWTSecret: "test-secret"}
	ts := newTestServer(t, cfg)

	// the user id header is ignored once tokens are enforced
	rec, _ := ts.do(t, http.MethodGet, "/api/wallet", "user-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := identity.NewVerifier(identity.Params{Cfg: cfg, Log: zap.NewNop()}).
		Issue(identity.Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set(identity.HeaderAuthorization, "Bearer "+token)
	out := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code, out.Body.String())
}

func TestTopUpAndWalletSummary(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.topUp(t, "user-1", "500")

	rec, env := ts.do(t, http.MethodGet, "/api/wallet", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[walletResponse](t, env.Data)
	assert.Equal(t, "500.00", resp.Wallet.Balance.String())
	assert.True(t, walletdomain.IsPublicID(resp.Wallet.PublicID))
	require.Len(t, resp.RecentTransactions, 1)
	assert.Equal(t, "500.00", resp.RecentTransactions[0].Amount.String())
	assert.Empty(t, resp.Transfers.Sent)
}

func TestTopUpValidation(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	for _, body := range []any{
		gin.H{"amount": "0"},
		gin.H{"amount": "-5"},
		gin.H{"amount": "ten"},
		gin.H{},
	} {
		rec, env := ts.do(t, http.MethodPost, "/api/wallet/top-up", "user-1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", body)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Type)
		require.NotEmpty(t, env.Error.Errors)
		assert.Equal(t, "amount", env.Error.Errors[0].Field)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.topUp(t, "user-1", "100")

	rec, env := ts.do(t, http.MethodPost, "/api/wallet/withdraw", "user-1", gin.H{"amount": "100.01"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "insufficient_funds", env.Error.Type)

	rec, env = ts.do(t, http.MethodPost, "/api/wallet/withdraw", "user-1", gin.H{"amount": "40"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"BANK_WITHDRAWAL"`)
}

func TestWalletTransactionsPagination(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	for i := 1; i <= 3; i++ {
		ts.topUp(t, "user-1", fmt.Sprintf("%d", i*10))
	}

	rec, env := ts.do(t, http.MethodGet, "/api/wallet/transactions?page_size=2", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[struct {
		NextPageToken string            `json:"next_page_token"`
		HasMore       bool              `json:"has_more"`
		Transactions  []json.RawMessage `json:"transactions"`
	}](t, env.Data)
	assert.Len(t, first.Transactions, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	rec, env = ts.do(t, http.MethodGet, "/api/wallet/transactions?page_size=2&page_token="+first.NextPageToken, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"has_more":false`)

	rec, env = ts.do(t, http.MethodGet, "/api/wallet/transactions?page_size=500", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "page_size", env.Error.Errors[0].Field)

	rec, _ = ts.do(t, http.MethodGet, "/api/wallet/transactions?page_token=%21%21", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferEndpoints(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.topUp(t, "alice", "300")
	bob := ts.publicID(t, "bob")

	rec, env := ts.do(t, http.MethodPost, "/api/transfers", "alice", gin.H{"target_public_id": "  " + bob + " ", "amount": "120.50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, env.Data)

	alice, err := ts.wallets.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "179.50", alice.Balance.String())
	bobWallet, err := ts.wallets.GetByUserID(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "120.50", bobWallet.Balance.String())

	rec, env = ts.do(t, http.MethodGet, "/api/transfers", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[transferdomain.History](t, env.Data)
	require.Len(t, history.Received, 1)
	assert.Empty(t, history.Sent)

	rec, _ = ts.do(t, http.MethodGet, "/api/transfers?limit=0", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferErrors(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.topUp(t, "alice", "50")
	self := ts.publicID(t, "alice")
	bob := ts.publicID(t, "bob")

	cases := []struct {
		name   string
		body   gin.H
		status int
		typ    string
	}{
		{"self", gin.H{"target_public_id": self, "amount": "10"}, http.StatusUnprocessableEntity, "self_transfer"},
		{"malformed id", gin.H{"target_public_id": "wallet-42", "amount": "10"}, http.StatusBadRequest, "validation_error"},
		{"unknown receiver", gin.H{"target_public_id": "px-000000000000", "amount": "10"}, http.StatusNotFound, "not_found"},
		{"overdraw", gin.H{"target_public_id": bob, "amount": "50.01"}, http.StatusUnprocessableEntity, "insufficient_funds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, "/api/transfers", "alice", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.typ, env.Error.Type)
		})
	}

	alice, err := ts.wallets.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "50.00", alice.Balance.String())
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec, env := ts.do(t, http.MethodGet, "/api/catalog/services", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"spotify"`)

	rec, env = ts.do(t, http.MethodGet, "/api/catalog/services/spotify", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"derived_plans"`)

	rec, env = ts.do(t, http.MethodGet, "/api/catalog/services/nope", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, checkoutdomain.StepSelectService, env.Error.Step)
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.topUp(t, "user-1", "1000")

	rec, env := ts.do(t, http.MethodPost, "/api/checkout/accounts/register", "user-1", serviceaccountdomain.RegisterRequest{
		ServiceKey:      "spotify",
		ServiceName:     "Spotify",
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "pw",
		ConfirmPassword: "pw",
		AcceptedTerms:   true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	auth := decode[authResponse](t, env.Data)
	require.NotEmpty(t, auth.Selection.AccountID)
	assert.Equal(t, "spotify", auth.Selection.ServiceKey)

	rec, env = ts.do(t, http.MethodGet, "/api/checkout/plans?service_key=spotify&account_id="+auth.Selection.AccountID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plans := decode[checkoutdomain.PlansResponse](t, env.Data)
	require.NotEmpty(t, plans.Plans)

	sel := auth.Selection
	sel.TrialEligible = false
	sel.PlanCode = "mini"
	rec, env = ts.do(t, http.MethodPost, "/api/checkout", "user-1", sel)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[checkoutdomain.CheckoutResult](t, env.Data)
	assert.Equal(t, subscriptiondomain.StatusActive, result.Subscription.Status)
	subID := result.Subscription.ID.String()

	// buying the same plan again bounces with a conflict
	rec, env = ts.do(t, http.MethodPost, "/api/checkout", "user-1", sel)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conflict", env.Error.Type)
	require.NotNil(t, env.Error.Selection)
	assert.Equal(t, "mini", env.Error.Selection.PlanCode)

	rec, env = ts.do(t, http.MethodGet, "/api/subscriptions?status=active", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]subscriptiondomain.Subscription](t, env.Data), 1)

	rec, _ = ts.do(t, http.MethodGet, "/api/subscriptions?status=paused", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/subscriptions/"+subID+"/receipt", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, _ = ts.do(t, http.MethodGet, "/api/subscriptions/"+subID, "someone-else", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = ts.do(t, http.MethodPost, "/api/subscriptions/"+subID+"/cancel", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, subscriptiondomain.StatusCancelled, decode[subscriptiondomain.Subscription](t, env.Data).Status)

	rec, env = ts.do(t, http.MethodGet, "/api/dashboard", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[dashboardResponse](t, env.Data)
	assert.Equal(t, 0, dash.ActiveSubscriptions)
	assert.Len(t, dash.Subscriptions, 1)
	assert.LessOrEqual(t, len(dash.RecentTransactions), dashboardRecentTransactions)
}

func TestCheckoutBouncesToAuthenticate(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec, env := ts.do(t, http.MethodPost, "/api/checkout", "user-1", checkoutdomain.Selection{
		ServiceKey: "spotify",
		AccountID:  "12345",
		PlanCode:   "mini",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, checkoutdomain.StepAuthenticate, env.Error.Step)
	require.NotNil(t, env.Error.Selection)
	assert.Equal(t, "spotify", env.Error.Selection.ServiceKey)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	register := serviceaccountdomain.RegisterRequest{
		ServiceKey:      "netflix",
		ServiceName:     "Netflix",
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        "secret",
		ConfirmPassword: "secret",
		AcceptedTerms:   true,
	}
	rec, _ := ts.do(t, http.MethodPost, "/api/checkout/accounts/register", "user-1", register)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := ts.do(t, http.MethodPost, "/api/checkout/accounts/login", "user-1", serviceaccountdomain.LoginRequest{
		ServiceKey:    "netflix",
		Email:         "bob@example.com",
		Password:      "wrong",
		AcceptedTerms: true,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, checkoutdomain.StepAuthenticate, env.Error.Step)

	rec, env = ts.do(t, http.MethodPost, "/api/checkout/accounts/register", "user-1", register)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conflict", env.Error.Type)
}

func TestAuditTrailRecordsMoneyMovements(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.topUp(t, "alice", "80")
	bob := ts.publicID(t, "bob")

	rec, _ := ts.do(t, http.MethodPost, "/api/transfers", "alice", gin.H{"target_public_id": bob, "amount": "30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// failed actions leave no entry
	rec, _ = ts.do(t, http.MethodPost, "/api/wallet/withdraw", "alice", gin.H{"amount": "1000"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env := ts.do(t, http.MethodGet, "/api/audit-logs", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[auditdomain.ListAuditLogResponse](t, env.Data)
	require.Len(t, resp.AuditLogs, 2)
	assert.Equal(t, auditdomain.ActionTransferSend, resp.AuditLogs[0].Action)
	assert.Equal(t, auditdomain.ActionWalletTopUp, resp.AuditLogs[1].Action)
	assert.Equal(t, "30.00", resp.AuditLogs[0].Metadata["amount"])
	require.NotNil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "alice", *resp.AuditLogs[0].ActorID)

	rec, env = ts.do(t, http.MethodGet, "/api/audit-logs?action="+auditdomain.ActionWalletTopUp, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[auditdomain.ListAuditLogResponse](t, env.Data).AuditLogs, 1)

	rec, env = ts.do(t, http.MethodGet, "/api/audit-logs", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[auditdomain.ListAuditLogResponse](t, env.Data).AuditLogs)
}

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (f *fakeLimiter) Enabled() bool { return true }

func (f *fakeLimiter) AllowUser(ctx context.Context, userID string) (*ratelimit.RateLimitResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ratelimit.RateLimitResult{
		Allowed:    f.allowed,
		Limit:      5,
		RetryAfter: 1500 * time.Millisecond,
	}, nil
}

func TestMoneyRateLimit(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	limiter := &fakeLimiter{allowed: false}
	ts.srv.moneyLimiter = limiter

	rec, env := ts.do(t, http.MethodPost, "/api/wallet/top-up", "user-1", gin.H{"amount": "10"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limited", env.Error.Type)

	// reads are never throttled
	rec, _ = ts.do(t, http.MethodGet, "/api/wallet", "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, limiter.calls)

	limiter.err = errors.New("redis down")
	rec, _ = ts.do(t, http.MethodPost, "/api/wallet/top-up", "user-1", gin.H{"amount": "10"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeSweeper struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (f *fakeSweeper) SweepUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.err
}

func TestReadsTriggerLazySweep(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	sweeper := &fakeSweeper{err: errors.New("sweep failed")}
	ts.srv.sweeper = sweeper

	for _, path := range []string{"/api/wallet", "/api/subscriptions", "/api/dashboard"} {
		rec, _ := ts.do(t, http.MethodGet, path, "user-9", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	rec, _ := ts.do(t, http.MethodGet, "/api/transfers", "user-9", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"user-9", "user-9", "user-9"}, sweeper.users)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{walletdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{walletdomain.ErrInvalidPublicID, http.StatusBadRequest, "validation_error"},
		{serviceaccountdomain.ErrInvalidRequest, http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("debit: %w", walletdomain.ErrInsufficientFunds), http.StatusUnprocessableEntity, "insufficient_funds"},
		{walletdomain.ErrEscrowBalanceTooLow, http.StatusUnprocessableEntity, "insufficient_funds"},
		{transferdomain.ErrReceiverNotFound, http.StatusNotFound, "not_found"},
		{subscriptiondomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{subscriptiondomain.ErrAlreadyActive, http.StatusConflict, "conflict"},
		{subscriptiondomain.ErrInvalidTransition, http.StatusConflict, "conflict"},
		{serviceaccountdomain.ErrAccountExists, http.StatusConflict, "conflict"},
		{transferdomain.ErrSelfTransfer, http.StatusUnprocessableEntity, "self_transfer"},
		{identity.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
		{serviceaccountdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.typ, payload.Type, tc.err.Error())
		assert.Nil(t, payload.Selection)
	}

	status, payload := mapError(&checkoutdomain.StepError{
		Step:      checkoutdomain.StepSelectPlan,
		Selection: checkoutdomain.Selection{ServiceKey: "netflix", PlanCode: "premium"},
		Err:       walletdomain.ErrInsufficientFunds,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, checkoutdomain.StepSelectPlan, payload.Step)
	require.NotNil(t, payload.Selection)
	assert.Equal(t, "premium", payload.Selection.PlanCode)
	assert.Equal(t, "insufficient_funds", classifyErrorForLog(walletdomain.ErrInsufficientFunds))
}
