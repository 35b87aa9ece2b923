// Package rectrack issues and tracks the outcome of suggestion
// recommendations: linking them to observed fills, rolling up realized
// metrics, and throttling abort flapping.
package rectrack

import (
	"database/sql"

	"ge-copilot/internal/store"
)

// Tracker records issued recommendations and advances their outcomes.
type Tracker struct {
	buyTimeoutSeconds  int64
	abortCooldownSecs  int64
}

// New builds a Tracker with the buy-timeout and abort-cooldown windows.
func New(buyTimeoutSeconds, abortCooldownSeconds int64) *Tracker {
	return &Tracker{buyTimeoutSeconds: buyTimeoutSeconds, abortCooldownSecs: abortCooldownSeconds}
}

// Record inserts a freshly issued recommendation. Idempotent: a duplicate
// rec_id is silently ignored.
func (t *Tracker) Record(st *store.Store, r *store.Recommendation) error {
	return st.WithWrite(func(tx *sql.Tx) error {
		return store.InsertRecommendation(tx, r)
	})
}

// ShouldThrottleAbort reports whether the most recent abort for boxID was
// issued within the cooldown window.
func (t *Tracker) ShouldThrottleAbort(st *store.Store, boxID int, now int64) (bool, error) {
	var throttle bool
	err := st.WithRead(func(db *sql.DB) error {
		last, err := store.MostRecentAbortIssuedTS(db, boxID)
		if err != nil {
			return err
		}
		throttle = last > 0 && now-last < t.abortCooldownSecs
		return nil
	})
	return throttle, err
}

// UpdateOutcomes runs one pass of the outcome rollup described in §4.5:
// timing out unfilled buys, aggregating realized metrics for non-terminal
// buy recs, and filling in buy-phase timestamps from linked instances.
func (t *Tracker) UpdateOutcomes(st *store.Store, now int64) error {
	return st.WithWrite(func(tx *sql.Tx) error {
		if _, err := store.TimeoutUnfilledBuys(tx, now, t.buyTimeoutSeconds); err != nil {
			return err
		}

		recs, err := store.NonTerminalBuyRecs(tx)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if err := t.rollupOne(tx, r, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Tracker) rollupOne(tx *sql.Tx, r *store.Recommendation, now int64) error {
	if r.LinkedOfferID != nil && r.BuyPhaseSeconds == nil {
		inst, err := lookupInstance(tx, *r.LinkedOfferID)
		if err != nil {
			return err
		}
		if inst != nil && inst.FirstFillTS != nil {
			r.BuyFirstFillTS = inst.FirstFillTS
			if inst.DoneTS != nil {
				r.BuyDoneTS = inst.DoneTS
				seconds := float64(*inst.DoneTS - *inst.FirstFillTS)
				r.BuyPhaseSeconds = &seconds
				r.OutcomeStatus = store.OutcomeBuyDone
			} else {
				r.OutcomeStatus = store.OutcomeBuyStarted
			}
			if err := store.UpdateRecBuyPhase(tx, r); err != nil {
				return err
			}
		}
	}

	agg, err := aggregateRealized(tx, r.RecID)
	if err != nil {
		return err
	}
	if agg.boughtQty == 0 && agg.realizedCost == 0 {
		return nil
	}

	r.RealizedProfit = &agg.realizedProfit
	r.RealizedCost = &agg.realizedCost
	if agg.realizedCost > 0 {
		roi := float64(agg.realizedProfit) / float64(agg.realizedCost)
		r.RealizedROI = &roi
	}
	if r.ExpectedProfit > 0 {
		vsExpected := float64(agg.realizedProfit) / float64(r.ExpectedProfit)
		r.RealizedVsExpected = &vsExpected
	}
	if agg.firstSellTS != nil && agg.lastSellTS != nil {
		seconds := float64(*agg.lastSellTS - *agg.firstSellTS)
		r.SellPhaseSeconds = &seconds
	}

	if agg.remaining <= 0 && agg.lastSellTS != nil {
		r.OutcomeStatus = store.OutcomeCompleted
		r.ClosedTS = agg.lastSellTS
	}

	return store.UpdateRecRollup(tx, r)
}

type realizedAgg struct {
	boughtQty      int64
	remaining      int64
	realizedProfit int64
	realizedCost   int64
	firstSellTS    *int64
	lastSellTS     *int64
}

func aggregateRealized(tx *sql.Tx, recID string) (realizedAgg, error) {
	var agg realizedAgg

	row := tx.QueryRow(`SELECT COALESCE(SUM(qty), 0) FROM buy_fills WHERE rec_id = ?`, recID)
	if err := row.Scan(&agg.boughtQty); err != nil {
		return agg, err
	}

	row = tx.QueryRow(`
		SELECT COALESCE(SUM(l.qty_remaining), 0)
		  FROM lots l
		 WHERE l.buy_rec_id = ?`, recID)
	if err := row.Scan(&agg.remaining); err != nil {
		return agg, err
	}

	row = tx.QueryRow(`
		SELECT COALESCE(SUM(profit), 0), COALESCE(SUM(qty * buy_price), 0), MIN(sell_ts), MAX(sell_ts)
		  FROM realized_trades
		 WHERE buy_rec_id = ?`, recID)
	var first, last sql.NullInt64
	if err := row.Scan(&agg.realizedProfit, &agg.realizedCost, &first, &last); err != nil {
		return agg, err
	}
	if first.Valid {
		v := first.Int64
		agg.firstSellTS = &v
	}
	if last.Valid {
		v := last.Int64
		agg.lastSellTS = &v
	}
	return agg, nil
}

func lookupInstance(tx *sql.Tx, offerID int64) (*store.OfferInstance, error) {
	row := tx.QueryRow(`
		SELECT offer_id, box_id, status, item_id, price, amount_total, amount_traded_last_seen,
		       start_ts, first_fill_ts, done_ts, last_seen_ts, last_trade_ts, active, linked_rec_id
		  FROM offer_instances WHERE offer_id = ?`, offerID)
	var inst store.OfferInstance
	err := row.Scan(
		&inst.OfferID, &inst.BoxID, &inst.Status, &inst.ItemID, &inst.Price, &inst.AmountTotal,
		&inst.AmountTradedLastSeen, &inst.StartTS, &inst.FirstFillTS, &inst.DoneTS, &inst.LastSeenTS,
		&inst.LastTradeTS, &inst.Active, &inst.LinkedRecID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
