// Package reconcile turns successive client status snapshots into durable
// offer-instance history, buy fills, and FIFO-matched realized trades.
package reconcile

import (
	"database/sql"
	"strconv"

	"ge-copilot/internal/config"
	"ge-copilot/internal/logger"
	"ge-copilot/internal/money"
	"ge-copilot/internal/store"
)

// OfferStatus mirrors the client's per-slot offer status.
type OfferStatus string

const (
	StatusEmpty OfferStatus = "empty"
	StatusBuy   OfferStatus = "buy"
	StatusSell  OfferStatus = "sell"
)

// Offer is one slot's reported state in a client status snapshot.
type Offer struct {
	BoxID         int
	Status        OfferStatus
	Active        bool
	ItemID        int64
	Price         int64
	AmountTotal   int64
	AmountTraded  int64
	GPToCollect   int64
}

const linkableRecWindowSeconds = 15 * 60

// Reconciler applies one status snapshot's offers against the ledger.
type Reconciler struct {
	cfg *config.Config
}

// New builds a Reconciler bound to cfg (needed for the seller-tax rate used
// in realized-trade profit).
func New(cfg *config.Config) *Reconciler {
	return &Reconciler{cfg: cfg}
}

// Apply reconciles every offer in the snapshot against the ledger, inside a
// single write transaction per offer's slot-local effects, matching §4.4.
// Per-offer parse errors (an offer skipped by the caller before this point,
// or any row that produces an unexpected internal error) do not abort the
// rest of the batch; Apply logs each one and moves on, and always returns nil.
func (r *Reconciler) Apply(st *store.Store, offers []Offer, now int64) error {
	for _, o := range offers {
		if err := r.applyOne(st, o, now); err != nil {
			logger.Warn("reconcile", "offer box "+strconv.Itoa(o.BoxID)+" skipped: "+err.Error())
		}
	}
	return nil
}

func (r *Reconciler) applyOne(st *store.Store, o Offer, now int64) error {
	return st.WithWrite(func(tx *sql.Tx) error {
		existing, err := store.GetOpenInstanceForBox(tx, o.BoxID)
		if err != nil {
			return err
		}

		if o.Status == StatusEmpty {
			if existing == nil {
				return nil
			}
			if err := store.CloseInstance(tx, existing.OfferID, now); err != nil {
				return err
			}
			if existing.Status == string(StatusBuy) && existing.AmountTradedLastSeen == 0 && existing.LinkedRecID != nil {
				return store.SetOutcome(tx, *existing.LinkedRecID, store.OutcomeFailedCancelled)
			}
			return nil
		}

		if o.AmountTotal < 0 || o.Price <= 0 || o.ItemID <= 0 {
			return nil
		}

		inst := existing
		sameInstance := existing != nil &&
			existing.Status == string(o.Status) &&
			existing.ItemID == o.ItemID &&
			existing.AmountTotal == o.AmountTotal

		if !sameInstance {
			if existing != nil {
				if err := store.CloseInstance(tx, existing.OfferID, now); err != nil {
					return err
				}
			}
			var firstFill *int64
			if o.AmountTraded > 0 {
				firstFill = &now
			}
			newInst := &store.OfferInstance{
				BoxID:                o.BoxID,
				Status:               string(o.Status),
				ItemID:               o.ItemID,
				Price:                o.Price,
				AmountTotal:          o.AmountTotal,
				AmountTradedLastSeen: 0,
				StartTS:              now,
				FirstFillTS:          firstFill,
				LastSeenTS:           now,
				Active:               o.Active,
			}
			id, err := store.InsertInstance(tx, newInst)
			if err != nil {
				return err
			}
			newInst.OfferID = id
			inst = newInst
		}

		if inst.LinkedRecID == nil {
			rec, err := store.FindLinkableRecommendation(tx, string(o.Status), o.BoxID, o.ItemID, now, linkableRecWindowSeconds)
			if err != nil {
				return err
			}
			if rec != nil {
				if err := store.LinkRecommendation(tx, rec.RecID, inst.OfferID); err != nil {
					return err
				}
				inst.LinkedRecID = &rec.RecID
			}
		}

		delta := o.AmountTraded - inst.AmountTradedLastSeen
		if delta > 0 {
			if o.Status == StatusBuy {
				lot := &store.Lot{ItemID: o.ItemID, BuyPrice: o.Price, QtyRemaining: delta, BuyTS: now, BuyOfferID: inst.OfferID, BuyRecID: inst.LinkedRecID}
				if _, err := store.InsertLot(tx, lot); err != nil {
					return err
				}
				fill := &store.BuyFill{ItemID: o.ItemID, Qty: delta, BuyPrice: o.Price, FillTS: now, OfferID: inst.OfferID, RecID: inst.LinkedRecID}
				if _, err := store.InsertBuyFill(tx, fill); err != nil {
					return err
				}
				if inst.LinkedRecID != nil {
					if err := store.SetOutcome(tx, *inst.LinkedRecID, store.OutcomeBuyStarted); err != nil {
						return err
					}
				}
			} else {
				profitFn := func(take, buyPrice int64) int64 {
					return take * (o.Price - buyPrice - money.SellerTax(r.cfg, o.Price))
				}
				var sellRecID *string
				if inst.LinkedRecID != nil {
					sellRecID = inst.LinkedRecID
				}
				if _, _, err := store.ConsumeLotsFIFO(tx, o.ItemID, delta, o.Price, now, inst.OfferID, sellRecID, profitFn); err != nil {
					return err
				}
			}
			inst.LastTradeTS = ptr(now)
		}

		inst.Price = o.Price
		inst.AmountTotal = o.AmountTotal
		inst.AmountTradedLastSeen = o.AmountTraded
		if inst.FirstFillTS == nil && o.AmountTraded > 0 {
			inst.FirstFillTS = ptr(now)
		}
		inst.LastSeenTS = now
		inst.Active = o.Active

		done := !o.Active || o.AmountTraded >= o.AmountTotal
		if done && inst.DoneTS == nil {
			inst.DoneTS = ptr(now)
			inst.Active = false
		}

		return store.UpdateInstance(tx, inst)
	})
}

func ptr(v int64) *int64 { return &v }
