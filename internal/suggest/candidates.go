package suggest

import (
	"math"
	"sort"

	"ge-copilot/internal/config"
	"ge-copilot/internal/money"
	"ge-copilot/internal/priceapi"
)

// candidate is one scored new-buy opportunity, per §4.6 step 8.
type candidate struct {
	itemID         int64
	name           string
	low, high      int64
	qty            int64
	expectedProfit int64
	mins           float64
	score          float64
}

// buildCandidates scans the price snapshot for buy opportunities passing
// every filter in §4.6 P6, scores them, and returns them sorted best-first.
func buildCandidates(
	cfg *config.Config,
	snap priceapi.Snapshot,
	n normalized,
	perSlotBudget int64,
	now int64,
	boughtLast4h func(itemID int64) int64,
) []candidate {
	var out []candidate

	for itemID, q := range snap.Latest {
		if n.blocked[itemID] || n.activeItems[itemID] {
			continue
		}
		meta, hasMeta := snap.Metadata[itemID]
		if !hasMeta {
			continue
		}
		dailyVol := snap.Volumes[itemID]
		if dailyVol < cfg.MinDailyVolume || dailyVol > cfg.MaxDailyVolume {
			continue
		}
		if q.Low <= 0 || q.High <= 0 || q.Low < cfg.MinBuyPrice {
			continue
		}
		sellAt := q.High - 1
		margin := sellAt - q.Low
		if margin < n.tier.minMarginEff {
			continue
		}
		profitPer := sellAt - q.Low - money.SellerTax(cfg, sellAt)
		minMargin := maxInt64(1, n.tier.minMarginEff)
		if profitPer < minMargin {
			continue
		}
		roi := float64(profitPer) / float64(q.Low)
		if roi < n.tier.minROIEff || roi > cfg.MaxROI {
			continue
		}
		qty := perSlotBudget / q.Low
		if qty <= 0 {
			continue
		}
		if meta.BuyLimit != nil {
			remaining := *meta.BuyLimit - boughtLast4h(itemID)
			if remaining < qty {
				qty = remaining
			}
			if qty <= 0 {
				continue
			}
		}
		mins := money.EstimateMinutesFromDaily(qty, dailyVol)
		if mins > n.tier.maxBuyMins {
			continue
		}

		expectedProfit := qty * profitPer
		score := scoreFor(expectedProfit, mins)

		out = append(out, candidate{
			itemID: itemID, name: meta.Name, low: q.Low, high: q.High,
			qty: qty, expectedProfit: expectedProfit, mins: mins, score: score,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func scoreFor(expectedProfit int64, mins float64) float64 {
	m := math.Max(mins, 0.25)
	return (float64(expectedProfit) / m) * 1.7 / math.Sqrt(m)
}

// applyTrendAssist re-scores the top TrendRecheckTopN candidates using the
// trend cache, per §4.6's trend-assist rule, and re-sorts.
func applyTrendAssist(cfg *config.Config, trends *priceapi.TrendCache, tfMinutes float64, candidates []candidate) []candidate {
	if !cfg.EnableTrends || tfMinutes <= 5 || trends == nil {
		return candidates
	}
	influence := 2.0
	switch {
	case tfMinutes <= 30:
		influence = 2.0
	case tfMinutes <= 120:
		influence = 3.5
	default:
		influence = 5.0
	}

	top := cfg.TrendRecheckTopN
	if top > len(candidates) {
		top = len(candidates)
	}
	horizon := int(tfMinutes)
	for i := 0; i < top; i++ {
		trend := trends.Trend(candidates[i].itemID, horizon)
		clamped := clampFloat(trend, -0.05, 0.05)
		candidates[i].score *= 1 + clamped*influence
		if tfMinutes >= 120 && trend < -0.03 {
			candidates[i].score /= 2
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	return candidates
}
