package money

import (
	"testing"

	"ge-copilot/internal/config"
)

func TestSellerTax_ZeroAndMonotone(t *testing.T) {
	cfg := config.Default()
	if got := SellerTax(cfg, 0); got != 0 {
		t.Errorf("SellerTax(0) = %d, want 0", got)
	}
	if got := SellerTax(cfg, -5); got != 0 {
		t.Errorf("SellerTax(-5) = %d, want 0", got)
	}
	prev := int64(0)
	for _, p := range []int64{1, 10, 100, 1000, 100000, 1_000_000_000} {
		got := SellerTax(cfg, p)
		if got < prev {
			t.Errorf("SellerTax(%d) = %d, not monotone (prev %d)", p, got, prev)
		}
		prev = got
	}
}

func TestSellerTax_Capped(t *testing.T) {
	cfg := config.Default()
	got := SellerTax(cfg, 1_000_000_000_000)
	if got != cfg.SellerTaxCap {
		t.Errorf("SellerTax(huge) = %d, want cap %d", got, cfg.SellerTaxCap)
	}
}

func TestSellerTax_Example(t *testing.T) {
	cfg := config.Default()
	if got := SellerTax(cfg, 110); got != 2 {
		t.Errorf("SellerTax(110) = %d, want 2", got)
	}
}

func TestGEPostTaxPrice_HighPriceHardCap(t *testing.T) {
	cfg := config.Default()
	got := GEPostTaxPrice(cfg, 4151, 300_000_000)
	want := int64(300_000_000 - 5_000_000)
	if got != want {
		t.Errorf("GEPostTaxPrice(high) = %d, want %d", got, want)
	}
}

func TestGEPostTaxPrice_ExemptItem(t *testing.T) {
	cfg := config.Default()
	got := GEPostTaxPrice(cfg, 8011, 1000)
	if got != 1000 {
		t.Errorf("GEPostTaxPrice(exempt) = %d, want 1000", got)
	}
}

func TestGEPostTaxPrice_NormalCase(t *testing.T) {
	cfg := config.Default()
	got := GEPostTaxPrice(cfg, 4151, 110)
	if got != 108 {
		t.Errorf("GEPostTaxPrice(110) = %d, want 108", got)
	}
}

func TestMinProfitableSellPrice_Example(t *testing.T) {
	cfg := config.Default()
	got := MinProfitableSellPrice(cfg, 100)
	if got != 104 {
		t.Errorf("MinProfitableSellPrice(100) = %d, want 104", got)
	}
}

func TestEstimateMinutesFromDaily_MissingVolume(t *testing.T) {
	if got := EstimateMinutesFromDaily(100, 0); got < 999999 {
		t.Errorf("expected large sentinel, got %v", got)
	}
	if got := EstimateMinutesFromDaily(100, -5); got < 999999 {
		t.Errorf("expected large sentinel for negative volume, got %v", got)
	}
}

func TestEstimateMinutesFromDaily_Example(t *testing.T) {
	got := EstimateMinutesFromDaily(60, 500000)
	want := 60.0 / (500000.0 / 1440.0)
	if got < want-0.001 || got > want+0.001 {
		t.Errorf("EstimateMinutesFromDaily = %v, want %v", got, want)
	}
}
