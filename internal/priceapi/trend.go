package priceapi

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ge-copilot/internal/logger"
)

const (
	trendMin = -0.25
	trendMax = 0.25
)

type trendKey struct {
	ItemID        int64
	HorizonMinute int
}

type trendEntry struct {
	value   float64
	expires time.Time
}

// TrendCache holds short-lived price-trend estimates keyed by
// (item_id, horizon_minutes), each clamped to [-0.25, 0.25] and expired
// after its own TTL. Trend lookups are opportunistic: a miss triggers a
// fetch of the item's timeseries, and a fetch failure yields a neutral
// trend of 0 rather than an error, since trend is an advisory signal the
// suggestion engine can do without.
type TrendCache struct {
	mu      sync.Mutex
	entries map[trendKey]trendEntry
	ttl     time.Duration
	client  *Client
	group   singleflight.Group
}

// NewTrendCache builds a TrendCache bound to client with the given TTL.
func NewTrendCache(client *Client, ttl time.Duration) *TrendCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TrendCache{
		entries: make(map[trendKey]trendEntry),
		ttl:     ttl,
		client:  client,
	}
}

// Trend returns the fractional price change for itemID over horizonMinutes,
// clamped to [-0.25, 0.25]. Cached entries are served directly; a miss or
// expired entry triggers a synchronous, singleflight-coalesced refetch.
func (t *TrendCache) Trend(itemID int64, horizonMinutes int) float64 {
	key := trendKey{ItemID: itemID, HorizonMinute: horizonMinutes}

	t.mu.Lock()
	if e, ok := t.entries[key]; ok && time.Now().Before(e.expires) {
		t.mu.Unlock()
		return e.value
	}
	t.mu.Unlock()

	v, _, _ := t.group.Do(fmt.Sprintf("%d:%d", key.ItemID, key.HorizonMinute), func() (any, error) {
		value := t.compute(itemID, horizonMinutes)
		t.mu.Lock()
		t.entries[key] = trendEntry{value: value, expires: time.Now().Add(t.ttl)}
		t.mu.Unlock()
		return value, nil
	})
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func (t *TrendCache) compute(itemID int64, horizonMinutes int) float64 {
	points, err := t.client.FetchTimeseries(itemID)
	if err != nil {
		logger.Warn("priceapi", "trend fetch failed: "+err.Error())
		return 0
	}
	buckets := horizonMinutes / 5
	if buckets <= 0 || len(points) < buckets+1 {
		return 0
	}
	recent := points[len(points)-1]
	past := points[len(points)-1-buckets]

	recentMid := midpoint(recent.AvgHighPrice, recent.AvgLowPrice)
	pastMid := midpoint(past.AvgHighPrice, past.AvgLowPrice)
	if pastMid <= 0 {
		return 0
	}
	trend := (recentMid - pastMid) / pastMid
	if trend > trendMax {
		trend = trendMax
	}
	if trend < trendMin {
		trend = trendMin
	}
	return trend
}

func midpoint(high, low int64) float64 {
	if high <= 0 {
		return float64(low)
	}
	if low <= 0 {
		return float64(high)
	}
	return float64(high+low) / 2
}
