package priceapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ge-copilot/internal/config"
)

func TestTrendCache_ComputesClampedFraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 7 buckets of 5m = 35m; horizon 30m needs 6 buckets back.
		w.Write([]byte(`{"data":[
			{"timestamp":0,"avgHighPrice":100,"avgLowPrice":100},
			{"timestamp":300,"avgHighPrice":100,"avgLowPrice":100},
			{"timestamp":600,"avgHighPrice":100,"avgLowPrice":100},
			{"timestamp":900,"avgHighPrice":100,"avgLowPrice":100},
			{"timestamp":1200,"avgHighPrice":100,"avgLowPrice":100},
			{"timestamp":1500,"avgHighPrice":100,"avgLowPrice":100},
			{"timestamp":1800,"avgHighPrice":200,"avgLowPrice":200}
		]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PricesBaseURL = srv.URL
	client := NewClient(cfg)
	cache := NewTrendCache(client, time.Minute)

	trend := cache.Trend(4151, 30)
	if trend != trendMax {
		t.Errorf("Trend = %v, want clamped to %v (100 -> 200 is a 100%% move)", trend, trendMax)
	}
}

func TestTrendCache_InsufficientHistoryReturnsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"timestamp":0,"avgHighPrice":100,"avgLowPrice":100}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PricesBaseURL = srv.URL
	cache := NewTrendCache(NewClient(cfg), time.Minute)

	if trend := cache.Trend(4151, 60); trend != 0 {
		t.Errorf("Trend with insufficient history = %v, want 0", trend)
	}
}

func TestTrendCache_FetchFailureYieldsNeutralTrend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PricesBaseURL = srv.URL
	cache := NewTrendCache(NewClient(cfg), time.Minute)

	if trend := cache.Trend(4151, 30); trend != 0 {
		t.Errorf("Trend after fetch failure = %v, want 0", trend)
	}
}

func TestTrendCache_CachesWithinTTL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"data":[{"timestamp":0,"avgHighPrice":100,"avgLowPrice":100},{"timestamp":300,"avgHighPrice":110,"avgLowPrice":110}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PricesBaseURL = srv.URL
	cache := NewTrendCache(NewClient(cfg), time.Hour)

	cache.Trend(4151, 5)
	cache.Trend(4151, 5)
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1 (second lookup should hit cache)", calls)
	}
}
