package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/pxwallet/internal/audit"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	"github.com/smallbiznis/pxwallet/internal/catalog"
	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
	"github.com/smallbiznis/pxwallet/internal/checkout"
	checkoutdomain "github.com/smallbiznis/pxwallet/internal/checkout/domain"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/smallbiznis/pxwallet/internal/escrow"
	"github.com/smallbiznis/pxwallet/internal/identity"
	"github.com/smallbiznis/pxwallet/internal/ledger"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	obslogger "github.com/smallbiznis/pxwallet/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pxwallet/internal/observability/tracing"
	"github.com/smallbiznis/pxwallet/internal/providers"
	"github.com/smallbiznis/pxwallet/internal/ratelimit"
	"github.com/smallbiznis/pxwallet/internal/scheduler"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount"
	"github.com/smallbiznis/pxwallet/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	"github.com/smallbiznis/pxwallet/internal/transfer"
	transferdomain "github.com/smallbiznis/pxwallet/internal/transfer/domain"
	"github.com/smallbiznis/pxwallet/internal/wallet"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	identity.Module,
	ratelimit.Module,
	providers.Module,
	audit.Module,
	escrow.Module,
	ledger.Module,
	wallet.Module,
	transfer.Module,
	catalog.Module,
	serviceaccount.Module,
	subscription.Module,
	checkout.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(RunHTTP),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// moneyLimiter throttles endpoints that move money.
type moneyLimiter interface {
	Enabled() bool
	AllowUser(ctx context.Context, userID string) (*ratelimit.RateLimitResult, error)
}

// sweeper brings a user's billing state up to date before it is read.
type sweeper interface {
	SweepUser(ctx context.Context, userID string) error
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	identity        *identity.Verifier
	walletSvc       walletdomain.Service
	ledgerSvc       ledgerdomain.Service
	transferSvc     transferdomain.Service
	catalogSvc      catalogdomain.Service
	checkoutSvc     checkoutdomain.Service
	subscriptionSvc subscriptiondomain.Service
	auditSvc        auditdomain.Service
	moneyLimiter    moneyLimiter
	sweeper         sweeper
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Identity        *identity.Verifier
	WalletSvc       walletdomain.Service
	LedgerSvc       ledgerdomain.Service
	TransferSvc     transferdomain.Service
	CatalogSvc      catalogdomain.Service
	CheckoutSvc     checkoutdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	AuditSvc        auditdomain.Service     `optional:"true"`
	MoneyLimiter    *ratelimit.MoneyLimiter `optional:"true"`
	Scheduler       *scheduler.Scheduler    `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		identity:        p.Identity,
		walletSvc:       p.WalletSvc,
		ledgerSvc:       p.LedgerSvc,
		transferSvc:     p.TransferSvc,
		catalogSvc:      p.CatalogSvc,
		checkoutSvc:     p.CheckoutSvc,
		subscriptionSvc: p.SubscriptionSvc,
		auditSvc:        p.AuditSvc,
		obsMetrics:      p.ObsMetrics,
	}
	if p.MoneyLimiter != nil {
		svc.moneyLimiter = p.MoneyLimiter
	}
	if p.Scheduler != nil {
		svc.sweeper = p.Scheduler
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Wallet --------
	api.GET("/wallet", s.GetWallet)
	api.GET("/wallet/transactions", s.ListWalletTransactions)
	api.POST("/wallet/top-up", s.MoneyRateLimit(), s.TopUp)
	api.POST("/wallet/withdraw", s.MoneyRateLimit(), s.Withdraw)

	// -------- Transfers --------
	api.POST("/transfers", s.MoneyRateLimit(), s.CreateTransfer)
	api.GET("/transfers", s.ListTransfers)

	// -------- Catalog --------
	api.GET("/catalog/services", s.ListCatalogServices)
	api.GET("/catalog/services/:key", s.GetCatalogService)

	// -------- Checkout --------
	api.POST("/checkout/accounts/login", s.LoginServiceAccount)
	api.POST("/checkout/accounts/register", s.RegisterServiceAccount)
	api.GET("/checkout/plans", s.ListCheckoutPlans)
	api.POST("/checkout", s.MoneyRateLimit(), s.Checkout)

	// -------- Subscriptions --------
	api.GET("/subscriptions", s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	api.GET("/subscriptions/:id/receipt", s.GetSubscriptionReceipt)

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

// sweep runs the lazy billing sweep for the caller. Failures are logged and
// never fail the read that triggered them.
func (s *Server) sweep(c *gin.Context, userID string) {
	if s.sweeper == nil {
		return
	}
	ctx := c.Request.Context()
	if err := s.sweeper.SweepUser(ctx, userID); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("lazy billing sweep failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
