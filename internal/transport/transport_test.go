package transport

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"ge-copilot/internal/config"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/profittrack"
	"ge-copilot/internal/reconcile"
	"ge-copilot/internal/rectrack"
	"ge-copilot/internal/store"
	"ge-copilot/internal/suggest"
	"ge-copilot/internal/wire"

	_ "modernc.org/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.LogPath = filepath.Join(t.TempDir(), "nonexistent.log")
	cfg.BuyQueuePath = filepath.Join(t.TempDir(), "buy_queue.json")

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client := priceapi.NewClient(cfg)
	prices := priceapi.NewPriceCache(client)
	r := reconcile.New(cfg)
	tr := rectrack.New(int64(cfg.BuyRecTimeoutSeconds), int64(cfg.AbortCooldownSeconds))
	queue := suggest.NewBuyQueue(cfg.BuyQueuePath)
	engine := suggest.New(cfg, st, r, tr, prices, nil, queue)
	ledger := profittrack.New(cfg, prices)

	return New(cfg, st, engine, prices, tr, ledger, 0)
}

func TestHandleHealth_ReportsDBUp(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !h.OK || !h.DB {
		t.Errorf("health = %+v, want OK=true DB=true", h)
	}
	if h.Log {
		t.Error("Log = true, want false (log file was never created)")
	}
}

func TestHandlePrices_UnknownItemReturnsNoPriceData(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/prices?item_id=4151")
	if err != nil {
		t.Fatalf("GET /prices: %v", err)
	}
	defer resp.Body.Close()

	var price wire.ItemPrice
	body := mustReadAll(t, resp)
	if err := msgpack.Unmarshal(body, &price); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if price.Message != "No price data" {
		t.Errorf("price = %+v, want the NoPriceData sentinel", price)
	}
}

func TestHandleSuggestion_EmptyStatusReturnsWaitAsJSON(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/suggestion", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /suggestion: %v", err)
	}
	defer resp.Body.Close()

	var action wire.Action
	if err := json.NewDecoder(resp.Body).Decode(&action); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action.Type != "wait" {
		t.Errorf("action.Type = %q, want wait", action.Type)
	}
}

func TestHandleSuggestion_MsgpackAcceptHeaderSwitchesEncoding(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/suggestion", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept", "application/x-msgpack")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /suggestion: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-msgpack" {
		t.Errorf("Content-Type = %q, want application/x-msgpack", ct)
	}
	if resp.Header.Get("X-SUGGESTION-CONTENT-LENGTH") == "" {
		t.Error("missing X-SUGGESTION-CONTENT-LENGTH header on the msgpack response")
	}

	var action wire.Action
	if err := msgpack.Unmarshal(mustReadAll(t, resp), &action); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if action.Type != "wait" {
		t.Errorf("action.Type = %q, want wait", action.Type)
	}
}

func TestHandleSuggestion_InvalidBodyReturns400(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/suggestion", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatalf("POST /suggestion: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleAccountNames_EmptyInitially(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/profit-tracking/rs-account-names")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("accounts = %+v, want empty on a fresh store", out)
	}
}

func TestProfitTrackingRoundTrip_IngestThenDelta(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	txPayload := `[{"tx_id":"tx-1","time":10,"item_id":4151,"quantity":5,"price":1000},
	               {"tx_id":"tx-2","time":20,"item_id":4151,"quantity":-5,"price":1200}]`
	resp, err := http.Post(srv.URL+"/profit-tracking/client-transactions?display_name=Zezima", "application/json", strings.NewReader(txPayload))
	if err != nil {
		t.Fatalf("POST client-transactions: %v", err)
	}
	defer resp.Body.Close()
	body := mustReadAll(t, resp)

	count, records := decodeFlipRecords(t, body)
	if count != 1 {
		t.Fatalf("flip record count = %d, want 1", count)
	}
	if records[0].ItemID != 4151 || records[0].Status != store.FlipFinished {
		t.Errorf("flip = %+v, want item 4151 finished", records[0])
	}

	accountID := profittrack.AccountID("Zezima")
	deltaBody := `{"account_id_time":{"` + strconv.FormatInt(accountID, 10) + `":0}}`

	resp2, err := http.Post(srv.URL+"/profit-tracking/client-flips-delta", "application/json", strings.NewReader(deltaBody))
	if err != nil {
		t.Fatalf("POST client-flips-delta: %v", err)
	}
	defer resp2.Body.Close()
	deltaResp := mustReadAll(t, resp2)

	if len(deltaResp) < 8 {
		t.Fatalf("delta response too short: %d bytes", len(deltaResp))
	}
	var deltaCount int32
	if err := binary.Read(bytes.NewReader(deltaResp[4:8]), binary.BigEndian, &deltaCount); err != nil {
		t.Fatalf("read count: %v", err)
	}
	if deltaCount != 1 {
		t.Fatalf("delta flip count = %d, want 1", deltaCount)
	}
}

func TestHandleGetClientTransactions_AlwaysEmpty(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/profit-tracking/client-transactions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body := mustReadAll(t, resp)
	if len(body) != 8 {
		t.Fatalf("len(body) = %d, want 8 (two zero int32 counts)", len(body))
	}
}

func mustReadAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return buf.Bytes()
}

func decodeFlipRecords(t *testing.T, body []byte) (int32, []*store.Flip) {
	t.Helper()
	if len(body) < 4 {
		t.Fatalf("body too short: %d bytes", len(body))
	}
	var count int32
	if err := binary.Read(bytes.NewReader(body[:4]), binary.BigEndian, &count); err != nil {
		t.Fatalf("read count: %v", err)
	}
	var out []*store.Flip
	offset := 4
	for i := int32(0); i < count; i++ {
		rec := body[offset : offset+wire.FlipV2Size]
		flip, err := wire.UnpackFlipV2(rec)
		if err != nil {
			t.Fatalf("UnpackFlipV2: %v", err)
		}
		out = append(out, flip)
		offset += wire.FlipV2Size
	}
	return count, out
}
