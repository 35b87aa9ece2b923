package priceapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ge-copilot/internal/config"
)

func TestPriceCache_RefreshOncePopulatesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mapping":
			w.Write([]byte(`[{"id":4151,"name":"Abyssal whip"}]`))
		case "/latest":
			w.Write([]byte(`{"data":{"4151":{"high":2500000,"highTime":10,"low":2450000,"lowTime":9}}}`))
		case "/volumes":
			w.Write([]byte(`{"data":{"4151":1200}}`))
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PricesBaseURL = srv.URL
	client := NewClient(cfg)
	cache := NewPriceCache(client)

	before := cache.Snapshot()
	if len(before.Latest) != 0 {
		t.Fatalf("snapshot before refresh has %d latest entries, want 0", len(before.Latest))
	}

	cache.refreshOnce()

	after := cache.Snapshot()
	if len(after.Metadata) != 1 || after.Metadata[4151].Name != "Abyssal whip" {
		t.Errorf("Metadata = %+v, want one entry for 4151", after.Metadata)
	}
	q, ok := after.Latest[4151]
	if !ok || q.High != 2500000 {
		t.Errorf("Latest[4151] = %+v, want High=2500000", q)
	}
	if after.Volumes[4151] != 1200 {
		t.Errorf("Volumes[4151] = %d, want 1200", after.Volumes[4151])
	}
	if after.LastRefreshTS == 0 {
		t.Error("LastRefreshTS = 0, want nonzero after a successful refresh")
	}
}

func TestPriceCache_FailedRefreshRetainsPreviousSnapshot(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/mapping":
			w.Write([]byte(`[{"id":4151,"name":"Abyssal whip"}]`))
		case "/latest":
			w.Write([]byte(`{"data":{"4151":{"high":100,"low":90}}}`))
		case "/volumes":
			w.Write([]byte(`{"data":{"4151":10}}`))
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PricesBaseURL = srv.URL
	cache := NewPriceCache(NewClient(cfg))

	cache.refreshOnce()
	good := cache.Snapshot()
	if good.Latest[4151].High != 100 {
		t.Fatalf("initial refresh did not populate snapshot: %+v", good)
	}

	fail = true
	cache.refreshOnce()
	after := cache.Snapshot()
	if after.Latest[4151].High != 100 {
		t.Errorf("Latest[4151].High = %d after failed refresh, want unchanged 100", after.Latest[4151].High)
	}
}
