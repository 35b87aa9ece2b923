// Package money implements the copilot's shared monetary helpers: the two
// coexisting GE tax functions, the minimum profitable resale price search,
// and the daily-volume fill-time estimator.
package money

import (
	"math"

	"ge-copilot/internal/config"
)

// SellerTax is the engine-facing tax estimate used for scoring and profit
// displays. It is capped by cfg.SellerTaxCap, not the game's hard 5M cap.
func SellerTax(cfg *config.Config, price int64) int64 {
	if price <= 0 {
		return 0
	}
	tax := int64(math.Floor(float64(price) * cfg.SellerTaxRate))
	if tax > cfg.SellerTaxCap {
		return cfg.SellerTaxCap
	}
	return tax
}

// GEPostTaxPrice is the settled-proceeds tax function used by the
// profit-tracking ledger. It differs from SellerTax by exempting a fixed
// item set and applying the game's hard 5,000,000 gp cap rather than the
// configurable one — the two functions are intentionally not unified.
func GEPostTaxPrice(cfg *config.Config, itemID int64, price int64) int64 {
	if cfg.GETaxExemptItems[itemID] || price <= 0 {
		return price
	}
	if price >= cfg.MaxPriceForGETax {
		return maxInt64(price-cfg.GETaxCap, 0)
	}
	tax := int64(math.Floor(float64(price) * cfg.SellerTaxRate))
	return maxInt64(price-tax, 0)
}

// GETaxPerUnit is the per-unit tax charged on a settled sale.
func GETaxPerUnit(cfg *config.Config, itemID int64, price int64) int64 {
	return price - GEPostTaxPrice(cfg, itemID, price)
}

// MinProfitableSellPrice returns the smallest integer sell price at or above
// ceil((avgBuy+1)/0.98) that clears at least 1 gp profit after SellerTax.
// The scan window is [max(1, guess-30), guess+500], but prices below guess
// are skipped, so the first price tried is guess itself; if nothing in the
// window clears 1 gp, guess+500 is returned.
func MinProfitableSellPrice(cfg *config.Config, avgBuy int64) int64 {
	guess := int64(math.Ceil(float64(avgBuy+1) / 0.98))
	lo := maxInt64(1, guess-30)
	hi := guess + 500
	for p := lo; p <= hi; p++ {
		if p < guess {
			continue
		}
		if p-avgBuy-SellerTax(cfg, p) >= 1 {
			return p
		}
	}
	return hi
}

// EstimateMinutesFromDaily estimates how many minutes it takes to move qty
// units given a daily trade volume. A missing or non-positive volume yields
// a large sentinel so the caller's "too slow" filters reject it.
func EstimateMinutesFromDaily(qty int64, dailyVol int64) float64 {
	if dailyVol <= 0 {
		return 1_000_000
	}
	perMinute := math.Max(float64(dailyVol)/1440.0, 1e-6)
	return float64(qty) / perMinute
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
