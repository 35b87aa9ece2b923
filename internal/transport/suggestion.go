package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"ge-copilot/internal/logger"
	"ge-copilot/internal/reconcile"
	"ge-copilot/internal/suggest"
	"ge-copilot/internal/wire"
)

// statusOfferWire is the client's per-slot offer shape.
type statusOfferWire struct {
	BoxID        int    `json:"box_id"`
	Status       string `json:"status"`
	Active       bool   `json:"active"`
	ItemID       int64  `json:"item_id"`
	Price        int64  `json:"price"`
	AmountTotal  int64  `json:"amount_total"`
	AmountTraded int64  `json:"amount_traded"`
	GPToCollect  int64  `json:"gp_to_collect"`
}

type statusItemWire struct {
	ItemID int64 `json:"item_id"`
	Amount int64 `json:"amount"`
}

type statusWire struct {
	Offers                   []statusOfferWire `json:"offers"`
	Items                    []statusItemWire  `json:"items"`
	Timeframe                string            `json:"timeframe"`
	BlockedItems             []int64           `json:"blocked_items"`
	SkipSuggestion           *int64            `json:"skip_suggestion"`
	SellOnly                 bool              `json:"sell_only"`
	RequestedSuggestionTypes []string          `json:"requested_suggestion_types"`
}

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var in statusWire
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid status payload")
		return
	}

	status := suggest.Status{
		Timeframe:                in.Timeframe,
		BlockedItems:             in.BlockedItems,
		SkipItemID:               in.SkipSuggestion,
		SellOnly:                 in.SellOnly,
		RequestedSuggestionTypes: in.RequestedSuggestionTypes,
	}
	for _, o := range in.Offers {
		status.Offers = append(status.Offers, reconcile.Offer{
			BoxID:        o.BoxID,
			Status:       reconcile.OfferStatus(o.Status),
			Active:       o.Active,
			ItemID:       o.ItemID,
			Price:        o.Price,
			AmountTotal:  o.AmountTotal,
			AmountTraded: o.AmountTraded,
			GPToCollect:  o.GPToCollect,
		})
	}
	for _, it := range in.Items {
		status.Items = append(status.Items, suggest.InventoryEntry{ItemID: it.ItemID, Amount: it.Amount})
	}

	now := nowUnix()
	action, err := s.engine.Decide(status, now)
	if err != nil {
		logger.Error("transport", "suggestion decide failed ["+requestID()+"]: "+err.Error())
	}
	writeAction(w, r, action)
}

// writeAction serves an Action as msgpack (when the client asked for it via
// Accept) or JSON otherwise, per §6's content negotiation rule.
func writeAction(w http.ResponseWriter, r *http.Request, action wire.Action) {
	if wantsMsgpack(r) {
		body, err := msgpack.Marshal(action)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server issue — check log")
			return
		}
		w.Header().Set("Content-Type", "application/x-msgpack")
		w.Header().Set("X-SUGGESTION-CONTENT-LENGTH", strconv.Itoa(len(body)))
		w.Header().Set("X-GRAPH-DATA-CONTENT-LENGTH", "0")
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, action)
}
