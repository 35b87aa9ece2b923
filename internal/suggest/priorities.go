package suggest

import (
	"database/sql"
	"fmt"
	"math"
	"sort"

	"ge-copilot/internal/money"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/reconcile"
	"ge-copilot/internal/store"
	"ge-copilot/internal/wire"
)

// priorityStale is P1: stale active offers get repriced (sells) or
// considered for abort (buys and unrepriceable sells).
func (e *Engine) priorityStale(status Status, n normalized, instByBox map[int]*store.OfferInstance, snap priceapi.Snapshot, now int64) (wire.Action, bool, error) {
	for _, o := range status.Offers {
		if o.Status == reconcile.StatusEmpty || !o.Active {
			continue
		}
		inst := instByBox[o.BoxID]
		if lastTradeAge(inst, now) < n.staleSecs {
			continue
		}

		if o.Status == reconcile.StatusSell {
			pos, err := e.trackedPosition(o.ItemID)
			if err != nil {
				return wire.Action{}, false, err
			}
			if pos.Qty > 0 && pos.AvgBuy > 0 {
				low := snap.Latest[o.ItemID].Low
				desired := maxInt64(low, money.MinProfitableSellPrice(e.cfg, pos.AvgBuy))
				if desired < o.Price {
					action, err := e.issue("sell", o.BoxID, o.ItemID, desired, remainingQty(o), 0, 0, "stale offer reprice", now)
					return action, true, err
				}
			}
			if ok, action, err := e.maybeAbort(status, n, o.BoxID, "sell", now, "stale sell, no profitable reprice"); err != nil || ok {
				return action, ok, err
			}
			continue
		}

		// buy
		if ok, action, err := e.maybeAbort(status, n, o.BoxID, "buy", now, "stale buy"); err != nil || ok {
			return action, ok, err
		}
	}
	return wire.Action{}, false, nil
}

// priorityCrashGuard is P2: nudge an active sell down toward the market
// while it remains profitable.
func (e *Engine) priorityCrashGuard(status Status, n normalized, instByBox map[int]*store.OfferInstance, snap priceapi.Snapshot, now int64) (wire.Action, bool, error) {
	for _, o := range status.Offers {
		if o.Status != reconcile.StatusSell || !o.Active {
			continue
		}
		inst := instByBox[o.BoxID]
		if lastTradeAge(inst, now) < n.staleSecs {
			continue
		}
		high := snap.Latest[o.ItemID].High
		if high <= 0 {
			continue
		}
		targetMarket := high - 1
		if o.Price <= targetMarket+2 {
			continue
		}
		desired := maxInt64(targetMarket, int64(math.Floor(float64(o.Price)*0.99)))
		if desired >= o.Price {
			desired = o.Price - 1
		}
		pos, err := e.trackedPosition(o.ItemID)
		if err != nil {
			return wire.Action{}, false, err
		}
		if pos.AvgBuy <= 0 {
			continue
		}
		profitPer := desired - pos.AvgBuy - money.SellerTax(e.cfg, desired)
		if profitPer <= 0 {
			continue
		}
		throttled, err := e.tracker.ShouldThrottleAbort(e.st, o.BoxID, now)
		if err != nil {
			return wire.Action{}, false, err
		}
		if throttled {
			continue
		}
		note := fmt.Sprintf("reprice sell → %d gp (crash-guard)", desired)
		action, err := e.issue("abort", o.BoxID, o.ItemID, desired, remainingQty(o), 0, 0, note, now)
		return action, true, err
	}
	return wire.Action{}, false, nil
}

// priorityClearSlots is P3: when every slot is occupied, clear a done
// offer, or abort the oldest stuck buy.
func (e *Engine) priorityClearSlots(status Status, n normalized, instByBox map[int]*store.OfferInstance, now int64) (wire.Action, bool, error) {
	for _, o := range status.Offers {
		if o.Status == reconcile.StatusEmpty || o.Active {
			continue
		}
		if o.Status == reconcile.StatusSell {
			if n.invFull && n.coins <= 0 {
				continue
			}
		} else {
			if n.invFull && n.inv[o.ItemID] == 0 {
				continue
			}
		}
		throttled, err := e.tracker.ShouldThrottleAbort(e.st, o.BoxID, now)
		if err != nil {
			return wire.Action{}, false, err
		}
		if throttled {
			continue
		}
		action, err := e.issue("abort", o.BoxID, o.ItemID, o.Price, remainingQty(o), 0, 0, "clear done offer", now)
		return action, true, err
	}

	var oldestBox = -1
	var oldestStart int64
	for box, inst := range instByBox {
		if inst.Status != string(reconcile.StatusBuy) || inst.AmountTradedLastSeen != 0 {
			continue
		}
		if now-inst.StartTS < int64(e.cfg.StuckBuyAbortSeconds) {
			continue
		}
		if n.invFull && n.inv[inst.ItemID] == 0 {
			continue
		}
		if oldestBox == -1 || inst.StartTS < oldestStart {
			oldestBox = box
			oldestStart = inst.StartTS
		}
	}
	if oldestBox != -1 {
		throttled, err := e.tracker.ShouldThrottleAbort(e.st, oldestBox, now)
		if err != nil {
			return wire.Action{}, false, err
		}
		if !throttled {
			inst := instByBox[oldestBox]
			action, err := e.issue("abort", oldestBox, inst.ItemID, inst.Price, inst.AmountTotal, 0, 0, "stuck buy, no fill", now)
			return action, true, err
		}
	}
	return wire.Action{}, false, nil
}

// prioritySellInventory is P4: dump unencumbered inventory that is
// profitable to sell or moving fast enough to clear quickly.
func (e *Engine) prioritySellInventory(n normalized, snap priceapi.Snapshot, offers []reconcile.Offer, now int64) (wire.Action, bool, error) {
	itemIDs := make([]int64, 0, len(n.inv))
	for itemID := range n.inv {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	for _, itemID := range itemIDs {
		amt := n.inv[itemID]
		if n.blocked[itemID] || n.activeItems[itemID] || amt <= 0 {
			continue
		}
		q, hasQuote := snap.Latest[itemID]
		if !hasQuote {
			continue
		}

		pos, err := e.trackedPosition(itemID)
		if err != nil {
			return wire.Action{}, false, err
		}
		if pos.Qty > 0 && pos.AvgBuy > 0 {
			sellPrice := maxInt64(q.High-1, 1)
			profitPer := sellPrice - pos.AvgBuy - money.SellerTax(e.cfg, sellPrice)
			if profitPer > 0 {
				action, err := e.issueSellFromInventory(itemID, sellPrice, amt, amt*profitPer, offers, now)
				return action, true, err
			}
			continue
		}

		mins := money.EstimateMinutesFromDaily(amt, snap.Volumes[itemID])
		if mins <= e.cfg.FastSellTargetMinutes {
			sellPrice := maxInt64(q.Low, 1)
			basis := sellPrice
			if fill, err := e.mostRecentBuyFill(itemID); err == nil && fill != nil {
				basis = fill.BuyPrice
			}
			profitPer := sellPrice - basis - money.SellerTax(e.cfg, sellPrice)
			action, err := e.issueSellFromInventory(itemID, sellPrice, amt, amt*profitPer, offers, now)
			return action, true, err
		}
	}
	return wire.Action{}, false, nil
}

func (e *Engine) issueSellFromInventory(itemID, price, qty, expectedProfit int64, offers []reconcile.Offer, now int64) (wire.Action, error) {
	box, ok := firstEmptySlot(offers)
	if !ok {
		return wire.Action{}, nil
	}
	return e.issue("sell", box, itemID, price, qty, expectedProfit, 0, "sell inventory", now)
}

// priorityQueuedBuy is P5: pop the durable buy queue into the next empty
// slot.
func (e *Engine) priorityQueuedBuy(status Status, now int64) (wire.Action, bool) {
	drop := map[int64]bool{}
	if status.SkipItemID != nil {
		drop[*status.SkipItemID] = true
	}
	head, ok := e.queue.Pop(drop)
	if !ok {
		return wire.Action{}, false
	}
	box, ok := firstEmptySlot(status.Offers)
	if !ok {
		return wire.Action{}, false
	}
	action, err := e.issue("buy", box, head.ItemID, head.Price, head.Qty, head.ExpectedProfit, head.ExpectedDuration, "", now)
	if err != nil {
		return wire.Action{}, false
	}
	action.Name = head.Name
	return action, true
}

// priorityNewBuy is P6: score fresh buy candidates from the price
// snapshot and emit the best one, queuing the rest.
func (e *Engine) priorityNewBuy(n normalized, snap priceapi.Snapshot, slotsOpen int, offers []reconcile.Offer, now int64) (wire.Action, bool, error) {
	budgetTotal := minInt64(int64(math.Floor(float64(n.coins)*e.cfg.MaxCashFraction)), e.cfg.BuyBudgetCap)
	if budgetTotal <= 0 || slotsOpen <= 0 {
		return wire.Action{}, false, nil
	}
	perSlotBudget := maxInt64(budgetTotal/int64(slotsOpen), 1)

	boughtLast4h := func(itemID int64) int64 {
		var qty int64
		_ = e.st.WithRead(func(db *sql.DB) error {
			q, err := store.BoughtQtyLast4h(db, itemID, now)
			if err != nil {
				return err
			}
			qty = q
			return nil
		})
		return qty
	}

	candidates := buildCandidates(e.cfg, snap, n, perSlotBudget, now, boughtLast4h)
	candidates = applyTrendAssist(e.cfg, e.trends, n.tfMinutes, candidates)
	if len(candidates) == 0 {
		return wire.Action{}, false, nil
	}

	take := slotsOpen
	if take > len(candidates) {
		take = len(candidates)
	}

	first := candidates[0]
	box, ok := firstEmptySlot(offers)
	if !ok {
		return wire.Action{}, false, nil
	}
	action, err := e.issue("buy", box, first.itemID, first.low, first.qty, first.expectedProfit,
		money.EstimateMinutesFromDaily(first.qty, snap.Volumes[first.itemID]), "", now)
	if err != nil {
		return wire.Action{}, false, err
	}
	action.Name = first.name

	var queued []QueuedBuy
	for _, c := range candidates[1:take] {
		queued = append(queued, QueuedBuy{
			ItemID: c.itemID, Name: c.name, Price: c.low, Qty: c.qty,
			ExpectedProfit: c.expectedProfit, ExpectedDuration: c.mins,
		})
	}
	if len(queued) > 0 {
		if err := e.queue.Push(queued...); err != nil {
			return wire.Action{}, false, err
		}
	}

	return action, true, nil
}

// maybeAbort emits an abort for boxID when inventory-safety and the abort
// throttle both allow it.
func (e *Engine) maybeAbort(status Status, n normalized, boxID int, side string, now int64, note string) (bool, wire.Action, error) {
	if !status.acceptsAborts() {
		return false, wire.Action{}, nil
	}
	safe := !n.invFull || n.coins > 0
	if !safe {
		return false, wire.Action{}, nil
	}
	throttled, err := e.tracker.ShouldThrottleAbort(e.st, boxID, now)
	if err != nil {
		return false, wire.Action{}, err
	}
	if throttled {
		return false, wire.Action{}, nil
	}
	var offer *reconcile.Offer
	for i := range status.Offers {
		if status.Offers[i].BoxID == boxID {
			offer = &status.Offers[i]
			break
		}
	}
	if offer == nil {
		return false, wire.Action{}, nil
	}
	action, err := e.issue("abort", boxID, offer.ItemID, offer.Price, remainingQty(*offer), 0, 0, note, now)
	return true, action, err
}

func (e *Engine) trackedPosition(itemID int64) (store.OpenPosition, error) {
	var pos store.OpenPosition
	err := e.st.WithRead(func(db *sql.DB) error {
		p, err := store.TrackedOpenPosition(db, itemID)
		if err != nil {
			return err
		}
		pos = p
		return nil
	})
	return pos, err
}

func (e *Engine) mostRecentBuyFill(itemID int64) (*store.BuyFill, error) {
	var fill *store.BuyFill
	err := e.st.WithRead(func(db *sql.DB) error {
		f, err := store.MostRecentBuyFill(db, itemID)
		if err != nil {
			return err
		}
		fill = f
		return nil
	})
	return fill, err
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
