package transport

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"ge-copilot/internal/profittrack"
	"ge-copilot/internal/store"
	"ge-copilot/internal/wire"
)

// handleAccountNames serves every known profit-tracking account as
// {display_name: account_id}.
func (s *Server) handleAccountNames(w http.ResponseWriter, r *http.Request) {
	var accounts []*store.ProfitAccount
	err := s.st.WithRead(func(db *sql.DB) error {
		a, err := store.ListAccounts(db)
		if err != nil {
			return err
		}
		accounts = a
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}
	out := map[string]int64{}
	for _, a := range accounts {
		out[a.DisplayName] = a.AccountID
	}
	writeJSON(w, out)
}

type accountTxQuery struct {
	Limit int   `json:"limit"`
	End   int64 `json:"end"`
}

// handleAccountClientTransactions serves a page of a single account's own
// past transactions as packed AckedTransaction records.
func (s *Server) handleAccountClientTransactions(w http.ResponseWriter, r *http.Request) {
	displayName := r.URL.Query().Get("display_name")
	var q accountTxQuery
	_ = json.NewDecoder(r.Body).Decode(&q)
	if q.Limit <= 0 {
		q.Limit = 200
	}

	var txs []*store.ProfitTransaction
	err := s.st.WithRead(func(db *sql.DB) error {
		t, err := store.RecentTransactionsForAccount(db, displayName, q.Limit, q.End)
		if err != nil {
			return err
		}
		txs = t
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, int32(len(txs)))
	for _, t := range txs {
		acked, err := ackedFromTransaction(t)
		if err != nil {
			continue
		}
		body, err := wire.PackAckedTransaction(acked)
		if err != nil {
			continue
		}
		buf.Write(body)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf.Bytes())
}

func ackedFromTransaction(t *store.ProfitTransaction) (*wire.AckedTransaction, error) {
	txUUID, err := uuid.Parse(t.TxID)
	if err != nil {
		txUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.TxID))
	}
	flipUUID, err := uuid.Parse(t.FlipUUID)
	if err != nil {
		flipUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.FlipUUID))
	}
	return &wire.AckedTransaction{
		TxUUID: txUUID, FlipUUID: flipUUID, AccountID: t.AccountID, Time: t.Time,
		ItemID: t.ItemID, Quantity: t.Quantity, Price: t.Price, AmountSpent: t.AmountSpent,
	}, nil
}

type clientTxWire struct {
	TxID                 string `json:"tx_id"`
	Time                 int64  `json:"time"`
	ItemID               int64  `json:"item_id"`
	Quantity             int64  `json:"quantity"`
	Price                int64  `json:"price"`
	BoxID                int    `json:"box_id"`
	AmountSpent          int64  `json:"amount_spent"`
	WasCopilotSuggestion bool   `json:"was_copilot_suggestion"`
	CopilotPriceUsed     int64  `json:"copilot_price_used"`
	Login                string `json:"login"`
}

// handlePostClientTransactions ingests the client's newly observed
// transactions and replies with the flips they changed.
func (s *Server) handlePostClientTransactions(w http.ResponseWriter, r *http.Request) {
	displayName := r.URL.Query().Get("display_name")
	var in []clientTxWire
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transactions payload")
		return
	}

	raw, _ := json.Marshal(in)
	txs := make([]profittrack.Transaction, 0, len(in))
	for _, t := range in {
		txs = append(txs, profittrack.Transaction{
			TxID: t.TxID, Time: t.Time, ItemID: t.ItemID, Quantity: t.Quantity, Price: t.Price,
			BoxID: t.BoxID, AmountSpent: t.AmountSpent, WasCopilotSuggestion: t.WasCopilotSuggestion,
			CopilotPriceUsed: t.CopilotPriceUsed, Login: t.Login, RawJSON: string(raw),
		})
	}

	flips, err := s.ledger.Ingest(s.st, displayName, txs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}

	w.Header().Set("X-USER-ID", "0")
	writeFlipRecords(w, flips)
}

// handleGetClientTransactions is a legacy poll endpoint; it reads no request
// parameters and always reports zero transactions followed by a zero
// trailing count.
func (s *Server) handleGetClientTransactions(w http.ResponseWriter, r *http.Request) {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, int32(0))
	_ = binary.Write(buf, binary.BigEndian, int32(0))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf.Bytes())
}

type flipsDeltaRequest struct {
	AccountIDTime map[string]int64 `json:"account_id_time"`
}

// handleClientFlipsDelta returns every flip updated since each account's
// last-seen checkpoint.
func (s *Server) handleClientFlipsDelta(w http.ResponseWriter, r *http.Request) {
	var in flipsDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid flips-delta payload")
		return
	}

	now := nowUnix()
	var all []*store.Flip
	for aidStr, lastTime := range in.AccountIDTime {
		accountID := parseAccountID(aidStr)
		flips, err := s.ledger.FlipsDelta(s.st, accountID, lastTime, now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server issue — check log")
			return
		}
		all = append(all, flips...)
	}

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, int32(now))
	_ = binary.Write(buf, binary.BigEndian, int32(len(all)))
	for _, f := range all {
		body, err := wire.PackFlipV2(f)
		if err != nil {
			continue
		}
		buf.Write(body)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf.Bytes())
}

type transactionIDRequest struct {
	TransactionID string `json:"transaction_id"`
}

// handleOrphanTransaction splits a transaction off into its own flip.
func (s *Server) handleOrphanTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid orphan-transaction payload")
		return
	}
	flip, err := s.ledger.OrphanTransaction(s.st, in.TransactionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}
	writeFlipRecords(w, []*store.Flip{flip})
}

// handleDeleteTransaction removes a transaction row outright.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delete-transaction payload")
		return
	}
	if err := s.ledger.DeleteTransaction(s.st, in.TransactionID); err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, int32(0))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf.Bytes())
}

type visualizeFlipRequest struct {
	FlipUUID    string `json:"flip_uuid"`
	DisplayName string `json:"display_name"`
	ItemID      int64  `json:"item_id"`
}

type visualizeFlipResponse struct {
	BuyTimes    []int64 `msgpack:"bt"`
	BuyVolumes  []int64 `msgpack:"bv"`
	BuyPrices   []int64 `msgpack:"bp"`
	SellTimes   []int64 `msgpack:"st"`
	SellVolumes []int64 `msgpack:"sv"`
	SellPrices  []int64 `msgpack:"sp"`
}

// handleVisualizeFlip reconstructs the buy/sell time series for one flip
// from its constituent transactions, for the client's flip chart.
func (s *Server) handleVisualizeFlip(w http.ResponseWriter, r *http.Request) {
	var in visualizeFlipRequest
	_ = json.NewDecoder(r.Body).Decode(&in)

	resp := visualizeFlipResponse{}
	flipUUID := in.FlipUUID
	if flipUUID == "" && in.DisplayName != "" {
		err := s.st.WithRead(func(db *sql.DB) error {
			flip, err := store.OpenFlip(db, in.DisplayName, in.ItemID)
			if err != nil {
				return err
			}
			if flip != nil {
				flipUUID = flip.FlipUUID
			}
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server issue — check log")
			return
		}
	}

	if flipUUID != "" {
		var txs []*store.ProfitTransaction
		err := s.st.WithRead(func(db *sql.DB) error {
			t, err := store.TransactionsForFlip(db, flipUUID)
			if err != nil {
				return err
			}
			txs = t
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server issue — check log")
			return
		}
		for _, t := range txs {
			if t.Quantity > 0 {
				resp.BuyTimes = append(resp.BuyTimes, t.Time)
				resp.BuyVolumes = append(resp.BuyVolumes, t.Quantity)
				resp.BuyPrices = append(resp.BuyPrices, t.Price)
			} else if t.Quantity < 0 {
				resp.SellTimes = append(resp.SellTimes, t.Time)
				resp.SellVolumes = append(resp.SellVolumes, -t.Quantity)
				resp.SellPrices = append(resp.SellPrices, t.Price)
			}
		}
	}

	body, err := msgpack.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}
	w.Header().Set("Content-Type", "application/x-msgpack")
	_, _ = w.Write(body)
}

func writeFlipRecords(w http.ResponseWriter, flips []*store.Flip) {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, int32(len(flips)))
	for _, f := range flips {
		if f == nil {
			continue
		}
		body, err := wire.PackFlipV2(f)
		if err != nil {
			continue
		}
		buf.Write(body)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf.Bytes())
}

func parseAccountID(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
