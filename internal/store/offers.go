package store

import (
	"database/sql"
)

// GetOpenInstanceForBox returns the OfferInstance with done_ts IS NULL for
// box_id, or nil if the slot is empty. Per the data model, at most one such
// row exists for any box_id.
func GetOpenInstanceForBox(q Queryer, boxID int) (*OfferInstance, error) {
	row := q.QueryRow(`
		SELECT offer_id, box_id, status, item_id, price, amount_total, amount_traded_last_seen,
		       start_ts, first_fill_ts, done_ts, last_seen_ts, last_trade_ts, active, linked_rec_id
		  FROM offer_instances
		 WHERE box_id = ? AND done_ts IS NULL
		 LIMIT 1`, boxID)
	inst, err := scanOfferInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOfferInstance(row rowScanner) (*OfferInstance, error) {
	var inst OfferInstance
	if err := row.Scan(
		&inst.OfferID, &inst.BoxID, &inst.Status, &inst.ItemID, &inst.Price, &inst.AmountTotal,
		&inst.AmountTradedLastSeen, &inst.StartTS, &inst.FirstFillTS, &inst.DoneTS, &inst.LastSeenTS,
		&inst.LastTradeTS, &inst.Active, &inst.LinkedRecID,
	); err != nil {
		return nil, err
	}
	return &inst, nil
}

// InsertInstance opens a new offer instance and returns its surrogate id.
func InsertInstance(q Queryer, inst *OfferInstance) (int64, error) {
	res, err := q.Exec(`
		INSERT INTO offer_instances (
			box_id, status, item_id, price, amount_total, amount_traded_last_seen,
			start_ts, first_fill_ts, done_ts, last_seen_ts, last_trade_ts, active, linked_rec_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.BoxID, inst.Status, inst.ItemID, inst.Price, inst.AmountTotal, inst.AmountTradedLastSeen,
		inst.StartTS, inst.FirstFillTS, inst.DoneTS, inst.LastSeenTS, inst.LastTradeTS, boolToInt(inst.Active), inst.LinkedRecID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateInstance persists the mutable fields of an already-open instance.
func UpdateInstance(q Queryer, inst *OfferInstance) error {
	_, err := q.Exec(`
		UPDATE offer_instances
		   SET price = ?, amount_total = ?, amount_traded_last_seen = ?,
		       first_fill_ts = ?, last_seen_ts = ?, last_trade_ts = ?,
		       active = ?, done_ts = ?, linked_rec_id = ?
		 WHERE offer_id = ?`,
		inst.Price, inst.AmountTotal, inst.AmountTradedLastSeen,
		inst.FirstFillTS, inst.LastSeenTS, inst.LastTradeTS,
		boolToInt(inst.Active), inst.DoneTS, inst.LinkedRecID, inst.OfferID,
	)
	return err
}

// CloseInstance marks an instance done at doneTS.
func CloseInstance(q Queryer, offerID int64, doneTS int64) error {
	_, err := q.Exec(`UPDATE offer_instances SET active = 0, done_ts = ? WHERE offer_id = ? AND done_ts IS NULL`, doneTS, offerID)
	return err
}

// InsertBuyFill appends a buy-fill row.
func InsertBuyFill(q Queryer, f *BuyFill) (int64, error) {
	res, err := q.Exec(`
		INSERT INTO buy_fills (item_id, qty, buy_price, fill_ts, offer_id, rec_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ItemID, f.Qty, f.BuyPrice, f.FillTS, f.OfferID, f.RecID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MostRecentBuyFill returns the latest buy_fill for an item, or nil if none.
func MostRecentBuyFill(q Queryer, itemID int64) (*BuyFill, error) {
	row := q.QueryRow(`
		SELECT fill_id, item_id, qty, buy_price, fill_ts, offer_id, rec_id
		  FROM buy_fills
		 WHERE item_id = ?
		 ORDER BY fill_ts DESC, fill_id DESC
		 LIMIT 1`, itemID)
	var f BuyFill
	if err := row.Scan(&f.FillID, &f.ItemID, &f.Qty, &f.BuyPrice, &f.FillTS, &f.OfferID, &f.RecID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// OpenPosition aggregates remaining lot quantity and average buy price for
// an item, as used by the stale-sell / crash-guard / inventory-sell paths.
type OpenPosition struct {
	Qty    int64
	AvgBuy int64
}

// TrackedOpenPosition returns the FIFO-weighted average buy price and
// remaining quantity for an item's open lots.
func TrackedOpenPosition(q Queryer, itemID int64) (OpenPosition, error) {
	row := q.QueryRow(`
		SELECT COALESCE(SUM(qty_remaining), 0), COALESCE(SUM(qty_remaining * buy_price), 0)
		  FROM lots WHERE item_id = ? AND qty_remaining > 0`, itemID)
	var qty, cost int64
	if err := row.Scan(&qty, &cost); err != nil {
		return OpenPosition{}, err
	}
	if qty == 0 {
		return OpenPosition{}, nil
	}
	return OpenPosition{Qty: qty, AvgBuy: cost / qty}, nil
}

// OpenInstances returns every offer instance with done_ts IS NULL, ordered
// by box_id, for the suggestion engine's per-pass priority scan.
func OpenInstances(q Queryer) ([]*OfferInstance, error) {
	rows, err := q.Query(`
		SELECT offer_id, box_id, status, item_id, price, amount_total, amount_traded_last_seen,
		       start_ts, first_fill_ts, done_ts, last_seen_ts, last_trade_ts, active, linked_rec_id
		  FROM offer_instances
		 WHERE done_ts IS NULL
		 ORDER BY box_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*OfferInstance
	for rows.Next() {
		inst, err := scanOfferInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// BoughtQtyLast4h sums buy_fills for itemID within the trailing 4 hours of
// now, for the buy_limit clipping rule.
func BoughtQtyLast4h(q Queryer, itemID int64, now int64) (int64, error) {
	var qty int64
	err := q.QueryRow(`
		SELECT COALESCE(SUM(qty), 0) FROM buy_fills WHERE item_id = ? AND fill_ts >= ?`,
		itemID, now-4*3600).Scan(&qty)
	return qty, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
