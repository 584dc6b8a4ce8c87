package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingPolicy holds the pricing and timing rules used by checkout, renewals and settlement.
type BillingPolicy struct {
	GSTRate           decimal.Decimal
	BasicMultiplier   decimal.Decimal
	PremiumMultiplier decimal.Decimal
	GraceWindow       time.Duration
	SettlementDelay   time.Duration
}

type billingFile struct {
	GSTRate           string        `mapstructure:"gstRate"`
	BasicMultiplier   string        `mapstructure:"basicMultiplier"`
	PremiumMultiplier string        `mapstructure:"premiumMultiplier"`
	GraceWindow       time.Duration `mapstructure:"graceWindow"`
	SettlementDelay   time.Duration `mapstructure:"settlementDelay"`
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		GSTRate:           decimal.RequireFromString("0.18"),
		BasicMultiplier:   decimal.RequireFromString("0.7"),
		PremiumMultiplier: decimal.RequireFromString("1.35"),
		GraceWindow:       7 * 24 * time.Hour,
		SettlementDelay:   10 * time.Second,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingPolicy
}

// NewStaticBillingConfigHolder wraps a fixed policy, mostly for tests.
func NewStaticBillingConfigHolder(policy BillingPolicy) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(policy)
	return holder
}

// NewBillingConfigHolder reads billing.yml (or the explicit path) and keeps it hot-reloaded.
func NewBillingConfigHolder(path string) (*BillingConfigHolder, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/pxwallet")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PXWALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy()
	v.SetDefault("billing.gstRate", defaults.GSTRate.String())
	v.SetDefault("billing.basicMultiplier", defaults.BasicMultiplier.String())
	v.SetDefault("billing.premiumMultiplier", defaults.PremiumMultiplier.String())
	v.SetDefault("billing.graceWindow", defaults.GraceWindow)
	v.SetDefault("billing.settlementDelay", defaults.SettlementDelay)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, err
		}
		watch = false
	}

	policy, err := decodeBillingPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(policy)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeBillingPolicy(v)
			if err != nil {
				zap.L().Warn("billing config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			zap.L().Info("billing config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingPolicy {
	return h.current.Load().(BillingPolicy)
}

func decodeBillingPolicy(v *viper.Viper) (BillingPolicy, error) {
	var raw billingFile
	if err := v.UnmarshalKey("billing", &raw); err != nil {
		return BillingPolicy{}, err
	}

	gst, err := decimal.NewFromString(strings.TrimSpace(raw.GSTRate))
	if err != nil {
		return BillingPolicy{}, fmt.Errorf("billing.gstRate: %w", err)
	}
	basic, err := decimal.NewFromString(strings.TrimSpace(raw.BasicMultiplier))
	if err != nil {
		return BillingPolicy{}, fmt.Errorf("billing.basicMultiplier: %w", err)
	}
	premium, err := decimal.NewFromString(strings.TrimSpace(raw.PremiumMultiplier))
	if err != nil {
		return BillingPolicy{}, fmt.Errorf("billing.premiumMultiplier: %w", err)
	}

	policy := BillingPolicy{
		GSTRate:           gst,
		BasicMultiplier:   basic,
		PremiumMultiplier: premium,
		GraceWindow:       raw.GraceWindow,
		SettlementDelay:   raw.SettlementDelay,
	}
	if err := validateBillingPolicy(policy); err != nil {
		return BillingPolicy{}, err
	}
	return policy, nil
}

func validateBillingPolicy(p BillingPolicy) error {
	if p.GSTRate.IsNegative() {
		return errors.New("billing.gstRate cannot be negative")
	}
	if !p.BasicMultiplier.IsPositive() || !p.PremiumMultiplier.IsPositive() {
		return errors.New("billing plan multipliers must be positive")
	}
	if p.GraceWindow <= 0 {
		return errors.New("billing.graceWindow must be positive")
	}
	if p.SettlementDelay < 0 {
		return errors.New("billing.settlementDelay cannot be negative")
	}
	return nil
}
