package config

import (
	"time"

	"github.com/spf13/viper"
)

// SettlementConfig holds the knobs of the settlement engine.
// Fee rates are basis points of the gross amount kept by the platform.
type SettlementConfig struct {
	Currency               string
	PlatformAccountID      string
	SessionFeeBps          int64
	PromotionalFeeBps      int64
	GiftFeeBps             int64
	TipFeeBps              int64
	ProductFeeBps          int64
	MinimumPayout          int64
	PayoutHourUTC          int
	PayoutWorkers          int
	RetryAttempts          uint
	RetryInitialInterval   time.Duration
	BalanceCacheTTL        time.Duration
	IdempotencyCacheTTL    time.Duration
	PayoutRunLockTTL       time.Duration
	AuditInterval          time.Duration
	WatchdogInterval       time.Duration
	HistoryPageSize        int
	WebhookSecret          string
	GatewayBaseURL         string
	GatewayAPIKey          string
	GatewayTimeout         time.Duration
	GatewayDebtorName      string
	GatewayDebtorAgentBIC  string
	DepositCheckoutBaseURL string
}

// BindSettlementEnv maps environment variables onto settlement config keys.
func BindSettlementEnv() {
	viper.BindEnv("settlement.currency", "SETTLEMENT_CURRENCY")
	viper.BindEnv("settlement.platform_account_id", "PLATFORM_ACCOUNT_ID")
	viper.BindEnv("settlement.fee_bps.session", "SESSION_FEE_BPS")
	viper.BindEnv("settlement.fee_bps.promotional", "PROMOTIONAL_FEE_BPS")
	viper.BindEnv("settlement.fee_bps.gift", "GIFT_FEE_BPS")
	viper.BindEnv("settlement.fee_bps.tip", "TIP_FEE_BPS")
	viper.BindEnv("settlement.fee_bps.product", "PRODUCT_FEE_BPS")
	viper.BindEnv("payout.minimum", "PAYOUT_MINIMUM")
	viper.BindEnv("payout.hour_utc", "PAYOUT_HOUR_UTC")
	viper.BindEnv("payout.workers", "PAYOUT_WORKERS")
	viper.BindEnv("payout.run_lock_ttl", "PAYOUT_RUN_LOCK_TTL")
	viper.BindEnv("retry.attempts", "RETRY_ATTEMPTS")
	viper.BindEnv("retry.initial_interval", "RETRY_INITIAL_INTERVAL")
	viper.BindEnv("cache.balance_ttl", "BALANCE_CACHE_TTL")
	viper.BindEnv("cache.idempotency_ttl", "IDEMPOTENCY_CACHE_TTL")
	viper.BindEnv("auditor.interval", "AUDITOR_INTERVAL")
	viper.BindEnv("watchdog.interval", "WATCHDOG_INTERVAL")
	viper.BindEnv("history.page_size", "HISTORY_PAGE_SIZE")
	viper.BindEnv("gateway.webhook_secret", "GATEWAY_WEBHOOK_SECRET")
	viper.BindEnv("gateway.base_url", "GATEWAY_BASE_URL")
	viper.BindEnv("gateway.api_key", "GATEWAY_API_KEY")
	viper.BindEnv("gateway.timeout", "GATEWAY_TIMEOUT")
	viper.BindEnv("gateway.debtor_name", "GATEWAY_DEBTOR_NAME")
	viper.BindEnv("gateway.debtor_agent_bic", "GATEWAY_DEBTOR_AGENT_BIC")
	viper.BindEnv("gateway.checkout_base_url", "DEPOSIT_CHECKOUT_BASE_URL")
}

// LoadSettlementConfig returns settlement configuration with defaults
func LoadSettlementConfig() *SettlementConfig {
	viper.SetDefault("settlement.currency", "USD")
	viper.SetDefault("settlement.platform_account_id", "platform")
	viper.SetDefault("settlement.fee_bps.session", 3000)
	viper.SetDefault("settlement.fee_bps.promotional", 0)
	viper.SetDefault("settlement.fee_bps.gift", 3000)
	viper.SetDefault("settlement.fee_bps.tip", 3000)
	viper.SetDefault("settlement.fee_bps.product", 3000)
	viper.SetDefault("payout.minimum", 1500)
	viper.SetDefault("payout.hour_utc", 2)
	viper.SetDefault("payout.workers", 4)
	viper.SetDefault("payout.run_lock_ttl", 30*time.Minute)
	viper.SetDefault("retry.attempts", 5)
	viper.SetDefault("retry.initial_interval", 50*time.Millisecond)
	viper.SetDefault("cache.balance_ttl", 30*time.Second)
	viper.SetDefault("cache.idempotency_ttl", 24*time.Hour)
	viper.SetDefault("auditor.interval", time.Hour)
	viper.SetDefault("watchdog.interval", 15*time.Second)
	viper.SetDefault("history.page_size", 100)
	viper.SetDefault("gateway.base_url", "http://localhost:9090")
	viper.SetDefault("gateway.timeout", 10*time.Second)
	viper.SetDefault("gateway.debtor_name", "SoulSeer Platform")
	viper.SetDefault("gateway.debtor_agent_bic", "SOULSEER")
	viper.SetDefault("gateway.checkout_base_url", "https://pay.soulseer.app/checkout")

	return &SettlementConfig{
		Currency:               viper.GetString("settlement.currency"),
		PlatformAccountID:      viper.GetString("settlement.platform_account_id"),
		SessionFeeBps:          viper.GetInt64("settlement.fee_bps.session"),
		PromotionalFeeBps:      viper.GetInt64("settlement.fee_bps.promotional"),
		GiftFeeBps:             viper.GetInt64("settlement.fee_bps.gift"),
		TipFeeBps:              viper.GetInt64("settlement.fee_bps.tip"),
		ProductFeeBps:          viper.GetInt64("settlement.fee_bps.product"),
		MinimumPayout:          viper.GetInt64("payout.minimum"),
		PayoutHourUTC:          viper.GetInt("payout.hour_utc"),
		PayoutWorkers:          viper.GetInt("payout.workers"),
		RetryAttempts:          viper.GetUint("retry.attempts"),
		RetryInitialInterval:   viper.GetDuration("retry.initial_interval"),
		BalanceCacheTTL:        viper.GetDuration("cache.balance_ttl"),
		IdempotencyCacheTTL:    viper.GetDuration("cache.idempotency_ttl"),
		PayoutRunLockTTL:       viper.GetDuration("payout.run_lock_ttl"),
		AuditInterval:          viper.GetDuration("auditor.interval"),
		WatchdogInterval:       viper.GetDuration("watchdog.interval"),
		HistoryPageSize:        viper.GetInt("history.page_size"),
		WebhookSecret:          viper.GetString("gateway.webhook_secret"),
		GatewayBaseURL:         viper.GetString("gateway.base_url"),
		GatewayAPIKey:          viper.GetString("gateway.api_key"),
		GatewayTimeout:         viper.GetDuration("gateway.timeout"),
		GatewayDebtorName:      viper.GetString("gateway.debtor_name"),
		GatewayDebtorAgentBIC:  viper.GetString("gateway.debtor_agent_bic"),
		DepositCheckoutBaseURL: viper.GetString("gateway.checkout_base_url"),
	}
}

// FeeBps returns the configured platform fee for each split category.
func (c *SettlementConfig) FeeBps() map[string]int64 {
	return map[string]int64{
		"session":     c.SessionFeeBps,
		"promotional": c.PromotionalFeeBps,
		"gift":        c.GiftFeeBps,
		"tip":         c.TipFeeBps,
		"product":     c.ProductFeeBps,
	}
}
