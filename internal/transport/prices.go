package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"ge-copilot/internal/wire"
)

type pricesRequest struct {
	ItemID int64 `json:"item_id"`
}

// handlePrices serves the msgpack ItemPrice quote for a single item, by
// query parameter on GET or JSON body on POST.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var itemID int64
	if r.Method == http.MethodGet {
		itemID, _ = strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	} else {
		var in pricesRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err == nil {
			itemID = in.ItemID
		}
	}

	price := wire.NoPriceData()
	snap := s.prices.Snapshot()
	if q, ok := snap.Latest[itemID]; ok && (q.Low > 0 || q.High > 0) {
		price = wire.ItemPrice{BuyPrice: q.Low, SellPrice: q.High}
	}

	body, err := msgpack.Marshal(price)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server issue — check log")
		return
	}
	w.Header().Set("Content-Type", "application/x-msgpack")
	_, _ = w.Write(body)
}
