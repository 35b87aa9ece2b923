// Package wire implements the copilot's client-facing encodings: the
// JSON/msgpack Action and ItemPrice payloads, and the fixed-width
// BIG_ENDIAN binary records used by the profit-tracking endpoints.
package wire

// Command ordinals carried in Action.CommandID.
const (
	CommandWait  = 0
	CommandBuy   = 1
	CommandSell  = 2
	CommandAbort = 3
)

// Action is the single suggestion returned for a status snapshot. Msgpack
// keys are deliberately short to keep the wire payload small; issued_unix,
// message, and note only ride along on the JSON variant.
type Action struct {
	Type             string  `json:"type" msgpack:"t"`
	RecID            string  `json:"rec_id" msgpack:"id"`
	IssuedUnix       int64   `json:"issued_unix" msgpack:"-"`
	BoxID            int     `json:"box_id" msgpack:"b"`
	ItemID           int64   `json:"item_id" msgpack:"i"`
	Price            int64   `json:"price" msgpack:"p"`
	Quantity         int64   `json:"quantity" msgpack:"q"`
	Name             string  `json:"name" msgpack:"n"`
	CommandID        int     `json:"command_id" msgpack:"m"`
	Message          string  `json:"message" msgpack:"-"`
	ExpectedProfit   int64   `json:"expectedProfit" msgpack:"ep"`
	ExpectedDuration float64 `json:"expectedDuration" msgpack:"ed"`
	Note             string  `json:"note" msgpack:"-"`
}

// ItemPrice is the minimal quote payload served by /prices.
type ItemPrice struct {
	BuyPrice  int64  `json:"bp" msgpack:"bp"`
	SellPrice int64  `json:"sp" msgpack:"sp"`
	Message   string `json:"m" msgpack:"m"`
}

// NoPriceData is the ItemPrice sentinel returned when no quote exists.
func NoPriceData() ItemPrice {
	return ItemPrice{Message: "No price data"}
}
