package suggest

import (
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"ge-copilot/internal/config"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/reconcile"
	"ge-copilot/internal/rectrack"
	"ge-copilot/internal/store"
	"ge-copilot/internal/wire"
)

// Engine is the priority state machine. It owns no mutable state of its
// own beyond the durable buy queue and the last-status dashboard snapshot;
// all ledger state lives in Store.
type Engine struct {
	cfg        *config.Config
	st         *store.Store
	reconciler *reconcile.Reconciler
	tracker    *rectrack.Tracker
	prices     *priceapi.PriceCache
	trends     *priceapi.TrendCache
	queue      *BuyQueue

	statusMu     sync.Mutex
	lastStatusTS int64
}

// New builds an Engine from its collaborators.
func New(cfg *config.Config, st *store.Store, reconciler *reconcile.Reconciler, tracker *rectrack.Tracker, prices *priceapi.PriceCache, trends *priceapi.TrendCache, queue *BuyQueue) *Engine {
	return &Engine{cfg: cfg, st: st, reconciler: reconciler, tracker: tracker, prices: prices, trends: trends, queue: queue}
}

// LastStatusTS returns the unix time of the most recently processed status
// snapshot, or 0 if none has been processed yet.
func (e *Engine) LastStatusTS() int64 {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.lastStatusTS
}

// Decide reconciles the snapshot's offers, updates recommendation
// outcomes, and returns exactly one action.
func (e *Engine) Decide(status Status, now int64) (wire.Action, error) {
	e.statusMu.Lock()
	e.lastStatusTS = now
	e.statusMu.Unlock()

	if err := e.reconciler.Apply(e.st, status.Offers, now); err != nil {
		return e.wait("server issue — check log"), err
	}
	if err := e.tracker.UpdateOutcomes(e.st, now); err != nil {
		return e.wait("server issue — check log"), err
	}

	n := normalize(status, e.cfg)
	instByBox, err := e.loadOpenInstances()
	if err != nil {
		return e.wait("server issue — check log"), err
	}
	snap := e.prices.Snapshot()
	slotsOpen := boxCount - occupiedSlots(status.Offers)

	if action, ok, err := e.priorityStale(status, n, instByBox, snap, now); err != nil {
		return e.wait("server issue — check log"), err
	} else if ok {
		return action, nil
	}

	if action, ok, err := e.priorityCrashGuard(status, n, instByBox, snap, now); err != nil {
		return e.wait("server issue — check log"), err
	} else if ok {
		return action, nil
	}

	if slotsOpen == 0 {
		action, ok, err := e.priorityClearSlots(status, n, instByBox, now)
		if err != nil {
			return e.wait("server issue — check log"), err
		}
		if ok {
			return action, nil
		}
		return e.wait("no open slots"), nil
	}

	if action, ok, err := e.prioritySellInventory(n, snap, status.Offers, now); err != nil {
		return e.wait("server issue — check log"), err
	} else if ok {
		return action, nil
	}

	if action, ok := e.priorityQueuedBuy(status, now); ok {
		return action, nil
	}

	if !status.SellOnly {
		if action, ok, err := e.priorityNewBuy(n, snap, slotsOpen, status.Offers, now); err != nil {
			return e.wait("server issue — check log"), err
		} else if ok {
			return action, nil
		}
	}

	return e.wait("no actionable move"), nil
}

func (e *Engine) loadOpenInstances() (map[int]*store.OfferInstance, error) {
	out := make(map[int]*store.OfferInstance)
	err := e.st.WithRead(func(db *sql.DB) error {
		insts, err := store.OpenInstances(db)
		if err != nil {
			return err
		}
		for _, inst := range insts {
			out[inst.BoxID] = inst
		}
		return nil
	})
	return out, err
}

func occupiedSlots(offers []reconcile.Offer) int {
	n := 0
	for _, o := range offers {
		if o.Status != reconcile.StatusEmpty {
			n++
		}
	}
	return n
}

func firstEmptySlot(offers []reconcile.Offer) (int, bool) {
	occupied := make(map[int]bool, len(offers))
	for _, o := range offers {
		if o.Status != reconcile.StatusEmpty {
			occupied[o.BoxID] = true
		}
	}
	for box := 0; box < boxCount; box++ {
		if !occupied[box] {
			return box, true
		}
	}
	return 0, false
}

func (e *Engine) wait(note string) wire.Action {
	return wire.Action{Type: "wait", CommandID: wire.CommandWait, Note: note, Message: note}
}

func commandFor(recType string) int {
	switch recType {
	case "buy":
		return wire.CommandBuy
	case "sell":
		return wire.CommandSell
	case "abort":
		return wire.CommandAbort
	default:
		return wire.CommandWait
	}
}

// issue records a recommendation and returns the corresponding action.
func (e *Engine) issue(recType string, boxID int, itemID, price, qty, expectedProfit int64, expectedDuration float64, note string, now int64) (wire.Action, error) {
	recID := uuid.NewString()
	rec := &store.Recommendation{
		RecID: recID, IssuedTS: now, RecType: recType, BoxID: boxID, ItemID: itemID,
		Price: price, Qty: qty, ExpectedProfit: expectedProfit, ExpectedDuration: expectedDuration, Note: note,
	}
	if err := e.tracker.Record(e.st, rec); err != nil {
		return wire.Action{}, err
	}
	return wire.Action{
		Type: recType, RecID: recID, IssuedUnix: now, BoxID: boxID, ItemID: itemID,
		Price: price, Quantity: qty, CommandID: commandFor(recType),
		ExpectedProfit: expectedProfit, ExpectedDuration: expectedDuration, Note: note,
	}, nil
}

func lastTradeAge(inst *store.OfferInstance, now int64) int64 {
	if inst == nil {
		return 0
	}
	last := inst.StartTS
	if inst.LastTradeTS != nil {
		last = *inst.LastTradeTS
	}
	return now - last
}

func remainingQty(o reconcile.Offer) int64 {
	remaining := o.AmountTotal - o.AmountTraded
	if remaining < 0 {
		return 0
	}
	return remaining
}
