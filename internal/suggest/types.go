// Package suggest implements the copilot's priority state machine: given a
// client status snapshot it reconciles offers, updates recommendation
// outcomes, and picks exactly one action — abort, sell, buy, or wait.
package suggest

import (
	"ge-copilot/internal/config"
	"ge-copilot/internal/reconcile"
)

const coinsItemID = 995
const inventorySlots = 28
const boxCount = 8

// InventoryEntry is one inventory stack reported by the client; an entry
// with ItemID 995 is coins.
type InventoryEntry struct {
	ItemID int64
	Amount int64
}

// Status is one client status snapshot.
type Status struct {
	Offers                   []reconcile.Offer
	Items                    []InventoryEntry
	Timeframe                string
	BlockedItems             []int64
	SkipItemID               *int64
	SellOnly                 bool
	RequestedSuggestionTypes []string
}

// acceptsAborts reports whether the client accepts abort suggestions. The
// client signals this through requested_suggestion_types rather than a
// dedicated flag: an empty/omitted list means no restriction (aborts are
// accepted), a non-empty list restricts suggestions to the listed types.
func (s Status) acceptsAborts() bool {
	if len(s.RequestedSuggestionTypes) == 0 {
		return true
	}
	for _, t := range s.RequestedSuggestionTypes {
		if t == "abort" {
			return true
		}
	}
	return false
}

// normalized is the derived view of a Status used throughout the priority
// cascade.
type normalized struct {
	coins       int64
	inv         map[int64]int64
	invFull     bool
	tfMinutes   float64
	staleSecs   int64
	tier        tierThresholds
	blocked     map[int64]bool
	activeItems map[int64]bool
}

func normalize(s Status, cfg *config.Config) normalized {
	n := normalized{
		inv:         make(map[int64]int64),
		blocked:     make(map[int64]bool, len(s.BlockedItems)),
		activeItems: make(map[int64]bool),
	}
	for _, b := range s.BlockedItems {
		n.blocked[b] = true
	}
	for _, it := range s.Items {
		if it.ItemID == coinsItemID {
			n.coins += it.Amount
			continue
		}
		n.inv[it.ItemID] += it.Amount
	}
	invCount := len(n.inv)
	if n.coins > 0 {
		invCount++
	}
	n.invFull = invCount >= inventorySlots

	for _, o := range s.Offers {
		if o.Status != reconcile.StatusEmpty {
			n.activeItems[o.ItemID] = true
		}
	}

	n.tfMinutes = parseTimeframe(s.Timeframe, cfg.TargetFillMinutes)
	n.staleSecs = int64(cfg.StaleOfferSeconds)
	if m := int64(n.tfMinutes * 60); m > n.staleSecs {
		n.staleSecs = m
	}
	n.tier = effectiveTier(n.tfMinutes, cfg)
	return n
}
