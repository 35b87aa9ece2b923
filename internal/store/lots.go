package store

// InsertLot opens a new lot from a buy fill.
func InsertLot(q Queryer, l *Lot) (int64, error) {
	res, err := q.Exec(`
		INSERT INTO lots (item_id, buy_price, qty_remaining, buy_ts, buy_offer_id, buy_rec_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ItemID, l.BuyPrice, l.QtyRemaining, l.BuyTS, l.BuyOfferID, l.BuyRecID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ConsumeLotsFIFO matches a sell of qty units against the oldest open lots
// for itemID (buy_ts ASC), inserting one RealizedTrade per lot consumed and
// deleting lots whose qty_remaining reaches zero. profitFn computes the
// per-unit-consistent profit for a (take, lot) pair so callers can apply
// seller_tax without this package depending on the money package.
//
// Returns the realized trades inserted, in consumption order (oldest lot
// first, matching insertion order), and any quantity that could not be matched
// because open lots ran out (the caller decides how to treat the shortfall).
func ConsumeLotsFIFO(q Queryer, itemID int64, qty int64, sellPrice int64, sellTS int64, sellOfferID int64, sellRecID *string, profitFn func(take, buyPrice int64) int64) ([]RealizedTrade, int64, error) {
	rows, err := q.Query(`
		SELECT tx_id, item_id, buy_price, qty_remaining, buy_ts, buy_offer_id, buy_rec_id
		  FROM lots
		 WHERE item_id = ? AND qty_remaining > 0
		 ORDER BY buy_ts ASC, tx_id ASC`, itemID)
	if err != nil {
		return nil, 0, err
	}
	type openLot struct {
		Lot
	}
	var lots []openLot
	for rows.Next() {
		var l openLot
		if err := rows.Scan(&l.TxID, &l.ItemID, &l.BuyPrice, &l.QtyRemaining, &l.BuyTS, &l.BuyOfferID, &l.BuyRecID); err != nil {
			rows.Close()
			return nil, 0, err
		}
		lots = append(lots, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var trades []RealizedTrade
	remaining := qty
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.QtyRemaining
		if take > remaining {
			take = remaining
		}
		profit := profitFn(take, lot.BuyPrice)

		trade := RealizedTrade{
			ItemID:      itemID,
			Qty:         take,
			BuyPrice:    lot.BuyPrice,
			SellPrice:   sellPrice,
			BuyTS:       lot.BuyTS,
			SellTS:      sellTS,
			Profit:      profit,
			SellOfferID: sellOfferID,
			SellRecID:   sellRecID,
			BuyRecID:    lot.BuyRecID,
		}
		res, err := q.Exec(`
			INSERT INTO realized_trades (
				item_id, qty, buy_price, sell_price, buy_ts, sell_ts, profit, sell_offer_id, sell_rec_id, buy_rec_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			trade.ItemID, trade.Qty, trade.BuyPrice, trade.SellPrice, trade.BuyTS, trade.SellTS,
			trade.Profit, trade.SellOfferID, trade.SellRecID, trade.BuyRecID,
		)
		if err != nil {
			return nil, 0, err
		}
		if tradeID, err := res.LastInsertId(); err == nil {
			trade.TradeID = tradeID
		}
		trades = append(trades, trade)

		newRemaining := lot.QtyRemaining - take
		if newRemaining <= 0 {
			if _, err := q.Exec(`DELETE FROM lots WHERE tx_id = ?`, lot.TxID); err != nil {
				return nil, 0, err
			}
		} else {
			if _, err := q.Exec(`UPDATE lots SET qty_remaining = ? WHERE tx_id = ?`, newRemaining, lot.TxID); err != nil {
				return nil, 0, err
			}
		}
		remaining -= take
	}

	return trades, remaining, nil
}
