// Package profittrack is the independent, event-sourced profit-tracking
// ledger: it deduplicates client-reported transactions and maintains
// per-account flip aggregates, decoupled from the suggestion engine's own
// lot accounting.
package profittrack

import (
	"database/sql"
	"hash/crc32"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ge-copilot/internal/config"
	"ge-copilot/internal/money"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/store"
)

// Transaction is one client-reported buy or sell event, prior to ledger
// assignment (flip_uuid, account_id are filled in during ingest).
type Transaction struct {
	TxID                 string
	Time                 int64
	ItemID               int64
	Quantity             int64 // signed: + buy, - sell
	Price                int64
	BoxID                int
	AmountSpent          int64
	WasCopilotSuggestion bool
	CopilotPriceUsed     int64
	Login                string
	RawJSON              string
}

// Ledger ingests client transactions and maintains flip aggregates.
type Ledger struct {
	cfg    *config.Config
	prices *priceapi.PriceCache
}

// New builds a Ledger bound to cfg (for GE tax constants) and prices (for
// the cost-basis fallback chain's latest-quote steps).
func New(cfg *config.Config, prices *priceapi.PriceCache) *Ledger {
	return &Ledger{cfg: cfg, prices: prices}
}

// AccountID computes the stable account id for a display name: a 31-bit
// CRC32 of the lowercased name, re-mapped to 1 when the checksum is 0.
func AccountID(displayName string) int64 {
	sum := crc32.ChecksumIEEE([]byte(strings.ToLower(displayName))) & 0x7FFFFFFF
	if sum == 0 {
		return 1
	}
	return int64(sum)
}

// Ingest sorts txs by time, dedupes by tx_id, applies each to the
// per-(display_name,item_id) flip it belongs to, and returns every flip
// that was opened, updated, or closed along the way.
func (l *Ledger) Ingest(st *store.Store, displayName string, txs []Transaction) ([]*store.Flip, error) {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	if len(sorted) == 0 {
		return nil, nil
	}
	accountID := AccountID(displayName)
	touched := make(map[string]*store.Flip)

	err := st.WithWrite(func(tx *sql.Tx) error {
		if _, err := store.GetOrCreateAccount(tx, displayName, accountID, sorted[0].Time); err != nil {
			return err
		}
		for _, t := range sorted {
			exists, err := store.TransactionExists(tx, t.TxID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			flip, err := l.applyOne(tx, displayName, accountID, t)
			if err != nil {
				return err
			}
			touched[flip.FlipUUID] = flip
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*store.Flip, 0, len(touched))
	for _, f := range touched {
		out = append(out, f)
	}
	return out, nil
}

func (l *Ledger) applyOne(tx *sql.Tx, displayName string, accountID int64, t Transaction) (*store.Flip, error) {
	flip, err := store.OpenFlip(tx, displayName, t.ItemID)
	if err != nil {
		return nil, err
	}
	if flip == nil {
		flip = &store.Flip{
			FlipUUID:    uuid.NewString(),
			DisplayName: displayName,
			AccountID:   accountID,
			ItemID:      t.ItemID,
			OpenedTime:  t.Time,
			Status:      store.FlipBuying,
		}
	}

	if t.Quantity > 0 {
		l.applyBuy(flip, t)
	} else if t.Quantity < 0 {
		l.applySell(tx, flip, t)
	}
	flip.UpdatedTime = t.Time

	if err := store.UpsertFlip(tx, flip); err != nil {
		return nil, err
	}

	if err := store.InsertTransaction(tx, &store.ProfitTransaction{
		TxID: t.TxID, DisplayName: displayName, AccountID: accountID, FlipUUID: flip.FlipUUID,
		Time: t.Time, ItemID: t.ItemID, Quantity: t.Quantity, Price: t.Price, BoxID: t.BoxID,
		AmountSpent: t.AmountSpent, WasCopilotSuggestion: t.WasCopilotSuggestion,
		CopilotPriceUsed: t.CopilotPriceUsed, Login: t.Login, RawJSON: t.RawJSON,
	}); err != nil {
		return nil, err
	}
	return flip, nil
}

func (l *Ledger) applyBuy(flip *store.Flip, t Transaction) {
	flip.OpenedQty += t.Quantity
	flip.Spent += t.Quantity * t.Price
	if flip.Status != store.FlipFinished {
		if flip.ClosedQty == 0 {
			flip.Status = store.FlipBuying
		} else {
			flip.Status = store.FlipSelling
		}
	}
}

func (l *Ledger) applySell(tx *sql.Tx, flip *store.Flip, t Transaction) {
	sellQty := -t.Quantity

	openRemaining := flip.OpenedQty - flip.ClosedQty
	if sellQty > openRemaining {
		shortfall := sellQty - openRemaining
		basis := l.costBasis(tx, t.ItemID, t.Price)
		flip.OpenedQty += shortfall
		flip.Spent += shortfall * basis
	}

	postTax := money.GEPostTaxPrice(l.cfg, t.ItemID, t.Price)
	perTax := t.Price - postTax

	flip.ReceivedPostTax += sellQty * postTax
	flip.TaxPaid += sellQty * perTax
	flip.ClosedQty += sellQty
	flip.ClosedTime = t.Time
	flip.Profit = flip.ReceivedPostTax - flip.Spent

	if flip.ClosedQty >= flip.OpenedQty {
		flip.Status = store.FlipFinished
	} else {
		flip.Status = store.FlipSelling
	}
}

// costBasis implements the fixed fallback chain: tracked open lots, then
// the most recent buy_fill, then latest.low, then latest.high, then the
// transaction's own sell price. The order is load-bearing and must not be
// reordered or averaged across sources.
func (l *Ledger) costBasis(tx *sql.Tx, itemID int64, sellPrice int64) int64 {
	if pos, err := store.TrackedOpenPosition(tx, itemID); err == nil && pos.Qty > 0 && pos.AvgBuy > 0 {
		return pos.AvgBuy
	}
	if fill, err := store.MostRecentBuyFill(tx, itemID); err == nil && fill != nil {
		return fill.BuyPrice
	}
	if l.prices != nil {
		snap := l.prices.Snapshot()
		if q, ok := snap.Latest[itemID]; ok {
			if q.Low > 0 {
				return q.Low
			}
			if q.High > 0 {
				return q.High
			}
		}
	}
	return sellPrice
}

// OrphanTransaction creates a new flip from the transaction's own
// account/item/time/sign, re-points the transaction to it, and re-applies
// buy/sell logic against that new flip.
func (l *Ledger) OrphanTransaction(st *store.Store, txID string) (*store.Flip, error) {
	var newFlip *store.Flip
	err := st.WithWrite(func(tx *sql.Tx) error {
		t, err := store.GetTransaction(tx, txID)
		if err != nil {
			return err
		}
		if t == nil {
			return sql.ErrNoRows
		}

		flip := &store.Flip{
			FlipUUID:    uuid.NewString(),
			DisplayName: t.DisplayName,
			AccountID:   t.AccountID,
			ItemID:      t.ItemID,
			OpenedTime:  t.Time,
			Status:      store.FlipBuying,
		}
		if t.Quantity > 0 {
			l.applyBuy(flip, Transaction{Time: t.Time, Quantity: t.Quantity, Price: t.Price})
		} else if t.Quantity < 0 {
			l.applySell(tx, flip, Transaction{ItemID: t.ItemID, Time: t.Time, Quantity: t.Quantity, Price: t.Price})
		}
		flip.UpdatedTime = t.Time

		if err := store.UpsertFlip(tx, flip); err != nil {
			return err
		}
		if err := store.RepointTransaction(tx, txID, flip.FlipUUID); err != nil {
			return err
		}
		newFlip = flip
		return nil
	})
	return newFlip, err
}

// DeleteTransaction removes a transaction row. Flip history is not
// rebuilt from the remaining transactions.
func (l *Ledger) DeleteTransaction(st *store.Store, txID string) error {
	return st.WithWrite(func(tx *sql.Tx) error {
		return store.DeleteTransaction(tx, txID)
	})
}

// FlipsDelta returns every flip for accountID (deleted ones included) whose
// updated_time exceeds lastTime. now is not used; the caller supplies the
// response's new time itself.
func (l *Ledger) FlipsDelta(st *store.Store, accountID int64, lastTime int64, now int64) ([]*store.Flip, error) {
	var flips []*store.Flip
	err := st.WithRead(func(db *sql.DB) error {
		f, err := store.FlipsUpdatedSince(db, accountID, lastTime)
		if err != nil {
			return err
		}
		flips = f
		return nil
	})
	return flips, err
}
