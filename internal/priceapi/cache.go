package priceapi

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ge-copilot/internal/config"
	"ge-copilot/internal/logger"
)

// Snapshot is an atomic, consistent copy of the cache's state at one point
// in time. Callers never see metadata from one refresh mixed with latest
// quotes from another.
type Snapshot struct {
	Metadata      map[int64]ItemMeta
	Latest        map[int64]LatestQuote
	Volumes       map[int64]int64
	LastRefreshTS int64
}

// PriceCache holds the most recently fetched item metadata, latest
// bid/ask, and daily volumes. A background goroutine refreshes it on a
// fixed period; reads never block on the network, and a failed refresh
// just retains the previous snapshot.
type PriceCache struct {
	mu sync.RWMutex

	metadata map[int64]ItemMeta
	latest   map[int64]LatestQuote
	volumes  map[int64]int64
	lastTS   int64

	client *Client
	group  singleflight.Group
}

// NewPriceCache builds an empty cache bound to client.
func NewPriceCache(client *Client) *PriceCache {
	return &PriceCache{
		metadata: make(map[int64]ItemMeta),
		latest:   make(map[int64]LatestQuote),
		volumes:  make(map[int64]int64),
		client:   client,
	}
}

// Snapshot returns a copy of the cache's current state. Safe for
// concurrent use; never blocks on network activity.
func (c *PriceCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta := make(map[int64]ItemMeta, len(c.metadata))
	for k, v := range c.metadata {
		meta[k] = v
	}
	latest := make(map[int64]LatestQuote, len(c.latest))
	for k, v := range c.latest {
		latest[k] = v
	}
	vols := make(map[int64]int64, len(c.volumes))
	for k, v := range c.volumes {
		vols[k] = v
	}
	return Snapshot{Metadata: meta, Latest: latest, Volumes: vols, LastRefreshTS: c.lastTS}
}

// StartRefresh launches the periodic refresher. It returns a stop func
// that halts the goroutine; callers typically defer it to shutdown.
func (c *PriceCache) StartRefresh(cfg *config.Config) (stop func()) {
	period := time.Duration(cfg.RefreshSeconds) * time.Second
	if period <= 0 {
		period = 60 * time.Second
	}
	done := make(chan struct{})
	go func() {
		c.refreshOnce()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.refreshOnce()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// refreshOnce runs a single fetch-and-publish cycle. A singleflight group
// collapses overlapping calls (e.g. a manual refresh racing the ticker)
// into one in-flight fetch. Any fetch failure is logged and the previous
// snapshot is retained untouched; this is the cache's only failure mode,
// and it is non-fatal by design per the copilot's external-feed contract.
func (c *PriceCache) refreshOnce() {
	_, _, _ = c.group.Do("refresh", func() (any, error) {
		c.mu.RLock()
		needMeta := len(c.metadata) == 0
		c.mu.RUnlock()

		var meta map[int64]ItemMeta
		if needMeta {
			m, err := c.client.FetchMapping()
			if err != nil {
				logger.Warn("priceapi", "fetch mapping failed: "+err.Error())
			} else {
				meta = m
			}
		}

		latest, err := c.client.FetchLatest()
		if err != nil {
			logger.Warn("priceapi", "fetch latest failed: "+err.Error())
			return nil, nil
		}

		volumes, err := c.client.FetchVolumes()
		if err != nil {
			logger.Warn("priceapi", "fetch volumes failed: "+err.Error())
			return nil, nil
		}

		c.mu.Lock()
		if meta != nil {
			c.metadata = meta
		}
		c.latest = latest
		c.volumes = volumes
		c.lastTS = time.Now().Unix()
		c.mu.Unlock()

		logger.Success("priceapi", "refreshed latest quotes and volumes")
		return nil, nil
	})
}
