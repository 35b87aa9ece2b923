package suggest

import (
	"strconv"
	"strings"

	"ge-copilot/internal/config"
)

// tierThresholds is the effective (min_roi, min_margin, max_buy_mins)
// triple for one timeframe bucket, per §4.6's tier table.
type tierThresholds struct {
	minROIEff    float64
	minMarginEff int64
	maxBuyMins   float64
}

func effectiveTier(tfMinutes float64, cfg *config.Config) tierThresholds {
	switch {
	case tfMinutes <= 5:
		return tierThresholds{
			minROIEff:    cfg.MinROI,
			minMarginEff: maxInt64(1, cfg.MinMarginGP),
			maxBuyMins:   3 * cfg.TargetFillMinutes,
		}
	case tfMinutes <= 30:
		return tierThresholds{
			minROIEff:    maxFloat(cfg.MinROI, 0.003),
			minMarginEff: maxInt64(cfg.MinMarginGP, 25),
			maxBuyMins:   60,
		}
	case tfMinutes <= 120:
		return tierThresholds{
			minROIEff:    maxFloat(cfg.MinROI, 0.006),
			minMarginEff: maxInt64(cfg.MinMarginGP, 50),
			maxBuyMins:   240,
		}
	default:
		return tierThresholds{
			minROIEff:    maxFloat(cfg.MinROI, 0.010),
			minMarginEff: maxInt64(cfg.MinMarginGP, 100),
			maxBuyMins:   720,
		}
	}
}

// parseTimeframe accepts "5m"|"30m"|"2h"|"8h"-style strings or a bare
// integer minute count, falling back to def and clamping to [1, 1440].
func parseTimeframe(tf string, def float64) float64 {
	tf = strings.TrimSpace(strings.ToLower(tf))
	minutes := def
	switch {
	case tf == "":
		// use default
	case strings.HasSuffix(tf, "m"):
		if n, err := strconv.ParseFloat(strings.TrimSuffix(tf, "m"), 64); err == nil {
			minutes = n
		}
	case strings.HasSuffix(tf, "h"):
		if n, err := strconv.ParseFloat(strings.TrimSuffix(tf, "h"), 64); err == nil {
			minutes = n * 60
		}
	default:
		if n, err := strconv.ParseFloat(tf, 64); err == nil {
			minutes = n
		}
	}
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 24*60 {
		minutes = 24 * 60
	}
	return minutes
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
