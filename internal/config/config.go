// Package config loads the copilot's tunable thresholds from the environment,
// falling back to the defaults named in the suggestion engine design.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every threshold the suggestion engine and monetary helpers
// consult. Every field except the GE tax constants (MaxPriceForGETax,
// GETaxCap, GETaxExemptItems) has an environment override of the form
// GECOPILOT_*; those three keep their Default() values.
type Config struct {
	Host string
	Port int

	PricesBaseURL string
	UserAgent     string

	RefreshSeconds int

	MaxCashFraction   float64
	BuyBudgetCap      int64
	TargetFillMinutes float64

	EnableTrends         bool
	TrendCacheTTLSeconds int
	TrendRecheckTopN     int

	MinBuyPrice int64
	MinMarginGP int64
	MinROI      float64
	MaxROI      float64

	MinDailyVolume int64
	MaxDailyVolume int64

	StaleOfferSeconds     int
	StuckBuyAbortSeconds  int
	BuyRecTimeoutSeconds  int
	AbortCooldownSeconds  int
	FastSellTargetMinutes float64

	SellerTaxRate float64
	SellerTaxCap  int64

	MaxPriceForGETax int64
	GETaxCap         int64
	GETaxExemptItems map[int64]bool

	DBPath       string
	BuyQueuePath string
	LogPath      string
}

// Default returns the configuration with every threshold at its documented
// default value.
func Default() *Config {
	return &Config{
		Host: "127.0.0.1",
		Port: 5000,

		PricesBaseURL: "https://prices.runescape.wiki/api/v1/osrs",
		UserAgent:     "ge-copilot/1.0",

		RefreshSeconds: 60,

		MaxCashFraction:   0.90,
		BuyBudgetCap:      10_000_000,
		TargetFillMinutes: 5.0,

		EnableTrends:         true,
		TrendCacheTTLSeconds: 180,
		TrendRecheckTopN:     20,

		MinBuyPrice: 1,
		MinMarginGP: 1,
		MinROI:      0.0005,
		MaxROI:      0.40,

		MinDailyVolume: 100_000,
		MaxDailyVolume: 1_000_000_000,

		StaleOfferSeconds:     300,
		StuckBuyAbortSeconds:  1200,
		BuyRecTimeoutSeconds:  1200,
		AbortCooldownSeconds:  120,
		FastSellTargetMinutes: 2.0,

		SellerTaxRate: 0.02,
		SellerTaxCap:  5_000_000,

		MaxPriceForGETax: 250_000_000,
		GETaxCap:         5_000_000,
		GETaxExemptItems: defaultExemptItems(),

		DBPath:       "ge-copilot.db",
		BuyQueuePath: "buy_queue.json",
		LogPath:      "ge-copilot.log",
	}
}

func defaultExemptItems() map[int64]bool {
	ids := []int64{
		8011, 365, 2309, 882, 806, 1891, 8010, 1755, 28824, 2140, 2142, 8009, 5325, 1785, 2347, 347,
		884, 807, 28790, 379, 8008, 355, 2327, 558, 1733, 13190, 233, 351, 5341, 2552, 329, 8794, 5329,
		5343, 1735, 315, 952, 886, 808, 8013, 361, 8007, 5331,
	}
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// LoadFromEnv returns Default() with every GECOPILOT_* environment variable
// override applied.
func LoadFromEnv() *Config {
	c := Default()

	c.Host = envOrDefault("GECOPILOT_BIND_HOST", c.Host)
	c.Port = envInt("GECOPILOT_PORT", c.Port)
	c.PricesBaseURL = envOrDefault("GECOPILOT_PRICES_BASE", c.PricesBaseURL)
	c.UserAgent = envOrDefault("GECOPILOT_USER_AGENT", c.UserAgent)
	c.RefreshSeconds = envInt("GECOPILOT_REFRESH_SECONDS", c.RefreshSeconds)

	c.MaxCashFraction = envFloat("GECOPILOT_MAX_CASH_FRACTION", c.MaxCashFraction)
	c.BuyBudgetCap = envInt64("GECOPILOT_BUY_BUDGET_CAP", c.BuyBudgetCap)
	c.TargetFillMinutes = envFloat("GECOPILOT_TARGET_FILL_MINUTES", c.TargetFillMinutes)

	c.EnableTrends = envBool("GECOPILOT_ENABLE_TRENDS", c.EnableTrends)
	c.TrendCacheTTLSeconds = envInt("GECOPILOT_TREND_CACHE_TTL", c.TrendCacheTTLSeconds)
	c.TrendRecheckTopN = envInt("GECOPILOT_TREND_TOP_N", c.TrendRecheckTopN)

	c.MinBuyPrice = envInt64("GECOPILOT_MIN_BUY_PRICE", c.MinBuyPrice)
	c.MinMarginGP = envInt64("GECOPILOT_MIN_MARGIN_GP", c.MinMarginGP)
	c.MinROI = envFloat("GECOPILOT_MIN_ROI", c.MinROI)
	c.MaxROI = envFloat("GECOPILOT_MAX_ROI", c.MaxROI)

	c.MinDailyVolume = envInt64("GECOPILOT_MIN_DAILY_VOLUME", c.MinDailyVolume)
	c.MaxDailyVolume = envInt64("GECOPILOT_MAX_DAILY_VOLUME", c.MaxDailyVolume)

	c.StaleOfferSeconds = envInt("GECOPILOT_STALE_OFFER_SECONDS", c.StaleOfferSeconds)
	c.StuckBuyAbortSeconds = envInt("GECOPILOT_STUCK_BUY_ABORT_SECONDS", c.StuckBuyAbortSeconds)
	c.BuyRecTimeoutSeconds = envInt("GECOPILOT_BUY_REC_TIMEOUT_SECONDS", c.BuyRecTimeoutSeconds)
	c.AbortCooldownSeconds = envInt("GECOPILOT_ABORT_COOLDOWN_SECONDS", c.AbortCooldownSeconds)
	c.FastSellTargetMinutes = envFloat("GECOPILOT_FAST_SELL_TARGET_MINUTES", c.FastSellTargetMinutes)

	c.SellerTaxRate = envFloat("GECOPILOT_SELLER_TAX_RATE", c.SellerTaxRate)
	c.SellerTaxCap = envInt64("GECOPILOT_SELLER_TAX_CAP", c.SellerTaxCap)

	c.DBPath = envOrDefault("GECOPILOT_DB_PATH", c.DBPath)
	c.BuyQueuePath = envOrDefault("GECOPILOT_BUY_QUEUE_PATH", c.BuyQueuePath)
	c.LogPath = envOrDefault("GECOPILOT_LOG_PATH", c.LogPath)

	return c
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v != "" {
		return v != "0" && v != "false" && v != "no" && v != "off"
	}
	return def
}
