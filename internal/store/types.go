package store

// OfferInstance is one contiguous lifetime of an offer at a GE slot.
type OfferInstance struct {
	OfferID               int64
	BoxID                 int
	Status                string // "buy" or "sell"
	ItemID                int64
	Price                 int64
	AmountTotal           int64
	AmountTradedLastSeen  int64
	StartTS               int64
	FirstFillTS           *int64
	DoneTS                *int64
	LastSeenTS            int64
	LastTradeTS           *int64
	Active                bool
	LinkedRecID           *string
}

// BuyFill is an append-only record of a buy-side fill delta.
type BuyFill struct {
	FillID   int64
	ItemID   int64
	Qty      int64
	BuyPrice int64
	FillTS   int64
	OfferID  int64
	RecID    *string
}

// Lot is an open buy-side position, consumed FIFO by sells.
type Lot struct {
	TxID        int64
	ItemID      int64
	BuyPrice    int64
	QtyRemaining int64
	BuyTS        int64
	BuyOfferID   int64
	BuyRecID     *string
}

// RealizedTrade is an append-only record of a sell matched against a lot.
type RealizedTrade struct {
	TradeID     int64
	ItemID      int64
	Qty         int64
	BuyPrice    int64
	SellPrice   int64
	BuyTS       int64
	SellTS      int64
	Profit      int64
	SellOfferID int64
	SellRecID   *string
	BuyRecID    *string
}

// Recommendation outcome states, per spec §4.5/§7.
const (
	OutcomeIssued           = "issued"
	OutcomeLinked           = "linked"
	OutcomeBuyStarted       = "buy_started"
	OutcomeBuyDone          = "buy_done"
	OutcomeCompleted        = "completed"
	OutcomeFailedNoFill     = "failed_no_fill"
	OutcomeFailedCancelled  = "failed_cancelled"
)

// Recommendation is one issued suggestion and its tracked outcome.
type Recommendation struct {
	RecID               string
	IssuedTS            int64
	RecType             string // buy | sell | abort
	BoxID               int
	ItemID              int64
	Price               int64
	Qty                 int64
	ExpectedProfit      int64
	ExpectedDuration    float64
	Note                string
	AbortReason         string
	LinkedOfferID       *int64
	OutcomeStatus       string
	BuyFirstFillTS      *int64
	BuyDoneTS           *int64
	BuyPhaseSeconds     *float64
	SellPhaseSeconds    *float64
	RealizedProfit      *int64
	RealizedCost        *int64
	RealizedROI         *float64
	RealizedVsExpected  *float64
	ClosedTS            *int64
}

// Flip status ordinals, fixed by the FlipV2 wire format.
const (
	FlipBuying   = 0
	FlipSelling  = 1
	FlipFinished = 2
)

// ProfitAccount maps a lowercased display name to a stable CRC32 account id.
type ProfitAccount struct {
	AccountID   int64
	DisplayName string
	CreatedTS   int64
}

// Flip is the profit-tracking aggregate for one item under one account,
// open until fully closed.
type Flip struct {
	FlipUUID         string
	DisplayName      string
	AccountID        int64
	ItemID           int64
	OpenedTime       int64
	OpenedQty        int64
	Spent            int64
	ClosedTime       int64
	ClosedQty        int64
	ReceivedPostTax  int64
	Profit           int64
	TaxPaid          int64
	Status           int
	UpdatedTime      int64
	Deleted          bool
}

// ProfitTransaction is one client-reported buy or sell event.
type ProfitTransaction struct {
	TxID                 string
	DisplayName          string
	AccountID            int64
	FlipUUID             string
	Time                 int64
	ItemID               int64
	Quantity             int64 // signed: + buy, - sell
	Price                int64
	BoxID                int
	AmountSpent          int64
	WasCopilotSuggestion bool
	CopilotPriceUsed     int64
	Login                string
	RawJSON              string
}
