package profittrack

import (
	"testing"

	"ge-copilot/internal/config"
	"ge-copilot/internal/money"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/store"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAccountID_StableAndNonZero(t *testing.T) {
	a := AccountID("Zezima")
	b := AccountID("zezima")
	if a != b {
		t.Errorf("AccountID not case-insensitive: %d vs %d", a, b)
	}
	if a == 0 {
		t.Error("AccountID = 0, want remapped to 1 on a zero checksum")
	}
}

func TestLedger_Ingest_BuyThenSellClosesFlipWithProfit(t *testing.T) {
	st := openTestStore(t)
	cfg := config.Default()
	l := New(cfg, nil)

	txs := []Transaction{
		{TxID: "tx-buy", Time: 10, ItemID: 4151, Quantity: 5, Price: 1000},
		{TxID: "tx-sell", Time: 20, ItemID: 4151, Quantity: -5, Price: 1200},
	}
	flips, err := l.Ingest(st, "Zezima", txs)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(flips) != 1 {
		t.Fatalf("len(flips) = %d, want 1 (both txs touch the same flip)", len(flips))
	}
	f := flips[0]
	if f.Status != store.FlipFinished {
		t.Errorf("Status = %d, want FlipFinished", f.Status)
	}
	if f.OpenedQty != 5 || f.ClosedQty != 5 {
		t.Errorf("OpenedQty=%d ClosedQty=%d, want 5 and 5", f.OpenedQty, f.ClosedQty)
	}
	if f.Spent != 5000 {
		t.Errorf("Spent = %d, want 5000", f.Spent)
	}
	wantPostTax := money.GEPostTaxPrice(cfg, 4151, 1200) * 5
	if f.ReceivedPostTax != wantPostTax {
		t.Errorf("ReceivedPostTax = %d, want %d", f.ReceivedPostTax, wantPostTax)
	}
	if f.Profit <= 0 {
		t.Errorf("Profit = %d, want positive (sold above cost after tax)", f.Profit)
	}
}

func TestLedger_Ingest_DuplicateTxIDIsNoOp(t *testing.T) {
	st := openTestStore(t)
	l := New(config.Default(), nil)

	tx := Transaction{TxID: "dup", Time: 10, ItemID: 4151, Quantity: 5, Price: 1000}
	if _, err := l.Ingest(st, "Zezima", []Transaction{tx}); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	flips, err := l.Ingest(st, "Zezima", []Transaction{tx})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if len(flips) != 0 {
		t.Errorf("re-ingesting a known tx_id touched %d flips, want 0", len(flips))
	}
}

func TestLedger_Ingest_Oversell_FallsBackToSellPriceAsCostBasis(t *testing.T) {
	st := openTestStore(t)
	cfg := config.Default()

	client := priceapi.NewClient(cfg)
	prices := priceapi.NewPriceCache(client)
	l := New(cfg, prices)

	// No tracked lots, no buy_fill, and no price cache entry for this item:
	// cost basis must fall all the way back to the sell's own price.
	tx := Transaction{TxID: "sell-only", Time: 10, ItemID: 9999, Quantity: -3, Price: 500}
	flips, err := l.Ingest(st, "Zezima", []Transaction{tx})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(flips) != 1 {
		t.Fatalf("len(flips) = %d, want 1", len(flips))
	}
	f := flips[0]
	if f.Spent != 3*500 {
		t.Errorf("Spent = %d, want %d (fell back to the sell price itself)", f.Spent, 3*500)
	}
	wantPostTax := money.GEPostTaxPrice(cfg, 9999, 500) * 3
	wantProfit := wantPostTax - f.Spent
	if f.Profit != wantProfit {
		t.Errorf("Profit = %d, want %d (cost basis equals the sell price, so the loss is exactly the GE tax)", f.Profit, wantProfit)
	}
}

func TestLedger_FlipsDelta_OnlyReturnsUpdatedSince(t *testing.T) {
	st := openTestStore(t)
	l := New(config.Default(), nil)

	if _, err := l.Ingest(st, "Zezima", []Transaction{
		{TxID: "a", Time: 10, ItemID: 1, Quantity: 1, Price: 100},
	}); err != nil {
		t.Fatalf("Ingest 1: %v", err)
	}
	if _, err := l.Ingest(st, "Zezima", []Transaction{
		{TxID: "b", Time: 20, ItemID: 2, Quantity: 1, Price: 200},
	}); err != nil {
		t.Fatalf("Ingest 2: %v", err)
	}

	accountID := AccountID("Zezima")
	flips, err := l.FlipsDelta(st, accountID, 15, 1000)
	if err != nil {
		t.Fatalf("FlipsDelta: %v", err)
	}
	if len(flips) != 1 || flips[0].ItemID != 2 {
		t.Fatalf("FlipsDelta = %+v, want only the item-2 flip updated after t=15", flips)
	}
}

func TestLedger_OrphanTransaction_RepointsToNewFlip(t *testing.T) {
	st := openTestStore(t)
	l := New(config.Default(), nil)

	if _, err := l.Ingest(st, "Zezima", []Transaction{
		{TxID: "orphan-me", Time: 10, ItemID: 4151, Quantity: 5, Price: 1000},
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	newFlip, err := l.OrphanTransaction(st, "orphan-me")
	if err != nil {
		t.Fatalf("OrphanTransaction: %v", err)
	}
	if newFlip == nil {
		t.Fatal("OrphanTransaction returned nil flip")
	}
	if newFlip.OpenedQty != 5 {
		t.Errorf("OpenedQty = %d, want 5", newFlip.OpenedQty)
	}
}
