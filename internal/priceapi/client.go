// Package priceapi treats the external price feed as an opaque source of
// three JSON maps (item metadata, latest bid/ask, daily volumes) plus a
// per-item timeseries, and maintains the PriceCache and TrendCache built on
// top of them.
package priceapi

import (
	"fmt"

	"github.com/go-resty/resty/v2"

	"ge-copilot/internal/config"
)

// ItemMeta is a static catalog entry for one tradeable item.
type ItemMeta struct {
	ItemID    int64
	Name      string
	BuyLimit  *int64
}

// LatestQuote is the most recent best-bid/best-ask pair for an item.
type LatestQuote struct {
	ItemID int64
	Low    int64
	High   int64
	LowTS  int64
	HighTS int64
}

// TimeseriesPoint is one 5-minute OHLC-ish bucket from the feed.
type TimeseriesPoint struct {
	Timestamp     int64
	AvgHighPrice  int64
	AvgLowPrice   int64
}

// Client is a thin resty wrapper over the external price feed. All methods
// return an error on any transport/parse failure; callers treat that as a
// non-fatal "stale data" signal, never a panic.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client bound to cfg's base URL and user agent, with a
// conservative timeout matching the feed's documented abuse limits.
func NewClient(cfg *config.Config) *Client {
	r := resty.New().
		SetBaseURL(cfg.PricesBaseURL).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(12_000_000_000). // 12s, within the 10-15s budget
		SetRetryCount(1)
	return &Client{http: r}
}

type mappingEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Limit    *int64 `json:"limit"`
}

// FetchMapping retrieves the full item catalog.
func (c *Client) FetchMapping() (map[int64]ItemMeta, error) {
	var entries []mappingEntry
	resp, err := c.http.R().SetResult(&entries).Get("/mapping")
	if err != nil {
		return nil, fmt.Errorf("fetch mapping: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch mapping: http %d", resp.StatusCode())
	}
	out := make(map[int64]ItemMeta, len(entries))
	for _, e := range entries {
		out[e.ID] = ItemMeta{ItemID: e.ID, Name: e.Name, BuyLimit: e.Limit}
	}
	return out, nil
}

type latestPayload struct {
	Data map[string]struct {
		High   int64 `json:"high"`
		HighTS int64 `json:"highTime"`
		Low    int64 `json:"low"`
		LowTS  int64 `json:"lowTime"`
	} `json:"data"`
}

// FetchLatest retrieves the latest bid/ask snapshot for every item.
func (c *Client) FetchLatest() (map[int64]LatestQuote, error) {
	var payload latestPayload
	resp, err := c.http.R().SetResult(&payload).Get("/latest")
	if err != nil {
		return nil, fmt.Errorf("fetch latest: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch latest: http %d", resp.StatusCode())
	}
	out := make(map[int64]LatestQuote, len(payload.Data))
	for idStr, v := range payload.Data {
		id := parseItemID(idStr)
		if id == 0 {
			continue
		}
		out[id] = LatestQuote{ItemID: id, Low: v.Low, High: v.High, LowTS: v.LowTS, HighTS: v.HighTS}
	}
	return out, nil
}

type volumePayload struct {
	Data map[string]int64 `json:"data"`
}

// FetchVolumes retrieves the approximate daily trade volume per item.
func (c *Client) FetchVolumes() (map[int64]int64, error) {
	var payload volumePayload
	resp, err := c.http.R().SetResult(&payload).Get("/volumes")
	if err != nil {
		return nil, fmt.Errorf("fetch volumes: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch volumes: http %d", resp.StatusCode())
	}
	out := make(map[int64]int64, len(payload.Data))
	for idStr, v := range payload.Data {
		id := parseItemID(idStr)
		if id == 0 {
			continue
		}
		out[id] = v
	}
	return out, nil
}

type timeseriesPayload struct {
	Data []struct {
		Timestamp    int64  `json:"timestamp"`
		AvgHighPrice *int64 `json:"avgHighPrice"`
		AvgLowPrice  *int64 `json:"avgLowPrice"`
	} `json:"data"`
}

// FetchTimeseries retrieves the 5-minute timeseries for a single item.
func (c *Client) FetchTimeseries(itemID int64) ([]TimeseriesPoint, error) {
	var payload timeseriesPayload
	resp, err := c.http.R().
		SetQueryParam("timestep", "5m").
		SetQueryParam("id", fmt.Sprintf("%d", itemID)).
		SetResult(&payload).
		Get("/timeseries")
	if err != nil {
		return nil, fmt.Errorf("fetch timeseries: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch timeseries: http %d", resp.StatusCode())
	}
	out := make([]TimeseriesPoint, 0, len(payload.Data))
	for _, p := range payload.Data {
		var hi, lo int64
		if p.AvgHighPrice != nil {
			hi = *p.AvgHighPrice
		}
		if p.AvgLowPrice != nil {
			lo = *p.AvgLowPrice
		}
		out = append(out, TimeseriesPoint{Timestamp: p.Timestamp, AvgHighPrice: hi, AvgLowPrice: lo})
	}
	return out, nil
}

func parseItemID(s string) int64 {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0
	}
	return id
}
