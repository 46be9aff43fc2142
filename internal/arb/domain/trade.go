package domain

import "time"

// TradeSide is buy or sell.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// TradeStatus is the lifecycle state of a single order leg.
type TradeStatus string

const (
	TradeSubmitted TradeStatus = "submitted"
	TradeOpen      TradeStatus = "open"
	TradeFilled    TradeStatus = "filled"
	TradeCanceled  TradeStatus = "canceled"
	TradeRejected  TradeStatus = "rejected"
)

// Trade is one executed or attempted order leg of an opportunity.
type Trade struct {
	ID            string
	OpportunityID string
	Venue         Venue
	Pair          Pair
	Side          TradeSide
	OrderID       string
	PlannedPrice  float64
	FilledPrice   float64
	Amount        float64
	FilledAmount  float64
	Status        TradeStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PriceDrifted reports whether the current market price has moved against
// the planned execution price by more than the allowed tolerance for the
// trade's side. Buys are rejected when the market has risen above plan;
// sells are rejected when it has fallen below plan.
func (t Trade) PriceDrifted(current float64, tolerance float64) bool {
	switch t.Side {
	case TradeBuy:
		return current > t.PlannedPrice*(1+tolerance)
	case TradeSell:
		return current < t.PlannedPrice*(1-tolerance)
	default:
		return false
	}
}

// TransferStatus is the lifecycle state of an inter-venue fund transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferSent      TransferStatus = "sent"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
	TransferUnknown   TransferStatus = "unknown"
)

// Transfer is a withdrawal from one venue routed toward a deposit address
// on another, used to rebalance currency between venues.
type Transfer struct {
	ID          string
	FromVenue   Venue
	ToVenue     Venue
	Currency    Currency
	Amount      float64
	Network     string
	Fee         float64
	WithdrawID  string
	Status      TransferStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
