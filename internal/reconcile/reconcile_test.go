package reconcile

import (
	"database/sql"
	"testing"

	"ge-copilot/internal/config"
	"ge-copilot/internal/store"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return st
}

func TestReconciler_BuyThenSellAtProfit(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	r := New(config.Default())

	// Buy order appears, fully fills.
	buy := Offer{BoxID: 0, Status: StatusBuy, Active: true, ItemID: 4151, Price: 2_000_000, AmountTotal: 1, AmountTraded: 1}
	if err := r.Apply(st, []Offer{buy}, 100); err != nil {
		t.Fatalf("Apply buy: %v", err)
	}

	var lotQty int64
	err := st.WithRead(func(db *sql.DB) error {
		pos, err := store.TrackedOpenPosition(db, 4151)
		lotQty = pos.Qty
		return err
	})
	if err != nil {
		t.Fatalf("TrackedOpenPosition: %v", err)
	}
	if lotQty != 1 {
		t.Fatalf("open position qty = %d, want 1 after buy fill", lotQty)
	}

	// Sell order appears in the same slot, fully fills at a profit.
	sell := Offer{BoxID: 0, Status: StatusSell, Active: true, ItemID: 4151, Price: 2_100_000, AmountTotal: 1, AmountTraded: 1}
	if err := r.Apply(st, []Offer{sell}, 200); err != nil {
		t.Fatalf("Apply sell: %v", err)
	}

	var profit int64
	var n int
	err = st.WithRead(func(db *sql.DB) error {
		row := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(profit), 0) FROM realized_trades WHERE item_id = 4151`)
		return row.Scan(&n, &profit)
	})
	if err != nil {
		t.Fatalf("read realized_trades: %v", err)
	}
	if n != 1 {
		t.Fatalf("realized_trades count = %d, want 1", n)
	}
	if profit <= 0 {
		t.Errorf("profit = %d, want > 0 (sold above buy price net of tax)", profit)
	}
}

func TestReconciler_EmptySlotClosesInstanceAndFailsUnfilledBuy(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	r := New(config.Default())

	rec := &store.Recommendation{RecID: "rec-cancel", IssuedTS: 50, RecType: "buy", BoxID: 0, ItemID: 4151, Price: 100, Qty: 10}
	if err := st.WithWrite(func(tx *sql.Tx) error { return store.InsertRecommendation(tx, rec) }); err != nil {
		t.Fatalf("insert rec: %v", err)
	}

	buy := Offer{BoxID: 0, Status: StatusBuy, Active: true, ItemID: 4151, Price: 100, AmountTotal: 10, AmountTraded: 0}
	if err := r.Apply(st, []Offer{buy}, 100); err != nil {
		t.Fatalf("Apply buy (no fill): %v", err)
	}

	empty := Offer{BoxID: 0, Status: StatusEmpty}
	if err := r.Apply(st, []Offer{empty}, 150); err != nil {
		t.Fatalf("Apply empty: %v", err)
	}

	err := st.WithRead(func(db *sql.DB) error {
		inst, err := store.GetOpenInstanceForBox(db, 0)
		if err != nil {
			return err
		}
		if inst != nil {
			t.Errorf("GetOpenInstanceForBox(0) = %+v, want nil after slot emptied", inst)
		}
		got, err := store.GetRecommendation(db, "rec-cancel")
		if err != nil {
			return err
		}
		if got.OutcomeStatus != store.OutcomeFailedCancelled {
			t.Errorf("OutcomeStatus = %q, want %q (cancelled before any fill)", got.OutcomeStatus, store.OutcomeFailedCancelled)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestReconciler_PartialFillThenMoreFillAccumulatesLots(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	r := New(config.Default())

	first := Offer{BoxID: 1, Status: StatusBuy, Active: true, ItemID: 314, Price: 10, AmountTotal: 100, AmountTraded: 30}
	if err := r.Apply(st, []Offer{first}, 100); err != nil {
		t.Fatalf("Apply first: %v", err)
	}
	second := Offer{BoxID: 1, Status: StatusBuy, Active: true, ItemID: 314, Price: 10, AmountTotal: 100, AmountTraded: 70}
	if err := r.Apply(st, []Offer{second}, 200); err != nil {
		t.Fatalf("Apply second: %v", err)
	}

	var qty int64
	err := st.WithRead(func(db *sql.DB) error {
		pos, err := store.TrackedOpenPosition(db, 314)
		qty = pos.Qty
		return err
	})
	if err != nil {
		t.Fatalf("TrackedOpenPosition: %v", err)
	}
	if qty != 70 {
		t.Errorf("open position qty = %d, want 70 (30 + incremental 40)", qty)
	}
}
