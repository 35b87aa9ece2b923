package rectrack

import (
	"database/sql"
	"testing"

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

func TestTracker_UpdateOutcomes_TimesOutUnfilledBuy(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	tr := New(1800, 900)

	rec := &store.Recommendation{RecID: "rec-1", IssuedTS: 0, RecType: "buy", BoxID: 0, ItemID: 4151, Price: 100, Qty: 10}
	if err := tr.Record(st, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := tr.UpdateOutcomes(st, 1800); err != nil {
		t.Fatalf("UpdateOutcomes: %v", err)
	}

	err := st.WithRead(func(db *sql.DB) error {
		got, err := store.GetRecommendation(db, "rec-1")
		if err != nil {
			return err
		}
		if got.OutcomeStatus != store.OutcomeFailedNoFill {
			t.Errorf("OutcomeStatus = %q, want %q", got.OutcomeStatus, store.OutcomeFailedNoFill)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestTracker_RecordIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	tr := New(1800, 900)

	rec := &store.Recommendation{RecID: "dup", IssuedTS: 0, RecType: "buy", BoxID: 0, ItemID: 4151, Price: 100, Qty: 10}
	if err := tr.Record(st, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record(st, rec); err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}

	var n int
	err := st.WithRead(func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM recommendations WHERE rec_id = ?`, "dup").Scan(&n)
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("recommendations with rec_id dup = %d, want 1", n)
	}
}

func TestTracker_ShouldThrottleAbort(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	tr := New(1800, 900)

	rec := &store.Recommendation{RecID: "abort-1", IssuedTS: 1000, RecType: "abort", BoxID: 3, ItemID: 4151, Price: 0, Qty: 0}
	if err := tr.Record(st, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	throttle, err := tr.ShouldThrottleAbort(st, 3, 1500)
	if err != nil {
		t.Fatalf("ShouldThrottleAbort: %v", err)
	}
	if !throttle {
		t.Error("ShouldThrottleAbort(+500s) = false, want true (within 900s cooldown)")
	}

	throttle, err = tr.ShouldThrottleAbort(st, 3, 2000)
	if err != nil {
		t.Fatalf("ShouldThrottleAbort: %v", err)
	}
	if throttle {
		t.Error("ShouldThrottleAbort(+1000s) = true, want false (cooldown elapsed)")
	}

	throttle, err = tr.ShouldThrottleAbort(st, 4, 1500)
	if err != nil {
		t.Fatalf("ShouldThrottleAbort other box: %v", err)
	}
	if throttle {
		t.Error("ShouldThrottleAbort for a box with no prior abort = true, want false")
	}
}

func TestTracker_RollupAggregatesRealizedTrades(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	tr := New(1800, 900)

	rec := &store.Recommendation{RecID: "rec-roll", IssuedTS: 0, RecType: "buy", BoxID: 0, ItemID: 4151, Price: 100, Qty: 10, ExpectedProfit: 100}
	if err := tr.Record(st, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	err := st.WithWrite(func(tx *sql.Tx) error {
		inst := &store.OfferInstance{BoxID: 0, Status: "buy", ItemID: 4151, Price: 100, AmountTotal: 10, StartTS: 0, FirstFillTS: ptrI64(10), LastSeenTS: 10, DoneTS: ptrI64(10), Active: false, LinkedRecID: ptrStr("rec-roll")}
		offerID, err := store.InsertInstance(tx, inst)
		if err != nil {
			return err
		}
		if err := store.LinkRecommendation(tx, "rec-roll", offerID); err != nil {
			return err
		}
		profitFn := func(take, buyPrice int64) int64 { return take * 20 }
		if _, err := store.InsertBuyFill(tx, &store.BuyFill{ItemID: 4151, Qty: 10, BuyPrice: 100, FillTS: 10, OfferID: offerID, RecID: ptrStr("rec-roll")}); err != nil {
			return err
		}
		if _, err := store.InsertLot(tx, &store.Lot{ItemID: 4151, BuyPrice: 100, QtyRemaining: 10, BuyTS: 10, BuyOfferID: offerID, BuyRecID: ptrStr("rec-roll")}); err != nil {
			return err
		}
		_, _, err = store.ConsumeLotsFIFO(tx, 4151, 10, 120, 20, offerID, ptrStr("rec-roll"), profitFn)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := tr.UpdateOutcomes(st, 30); err != nil {
		t.Fatalf("UpdateOutcomes: %v", err)
	}

	err = st.WithRead(func(db *sql.DB) error {
		got, err := store.GetRecommendation(db, "rec-roll")
		if err != nil {
			return err
		}
		if got.RealizedProfit == nil || *got.RealizedProfit != 200 {
			t.Errorf("RealizedProfit = %v, want 200", got.RealizedProfit)
		}
		if got.OutcomeStatus != store.OutcomeCompleted {
			t.Errorf("OutcomeStatus = %q, want %q", got.OutcomeStatus, store.OutcomeCompleted)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
}

func ptrI64(v int64) *int64  { return &v }
func ptrStr(v string) *string { return &v }
