// Package venue defines the exchange adapter contract every venue
// implementation satisfies, wrapped uniformly with a circuit breaker and
// rate limiter.
package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// ErrorKind classifies an adapter failure so callers can decide whether to
// retry, back off, or surface the error immediately.
type ErrorKind string

const (
	ErrTransient      ErrorKind = "transient"
	ErrAuth           ErrorKind = "auth"
	ErrRateLimited    ErrorKind = "rate_limited"
	ErrNotSupported   ErrorKind = "not_supported"
	ErrInvalidArg     ErrorKind = "invalid_argument"
	ErrUnknown        ErrorKind = "unknown"
)

// AdapterError wraps a venue adapter failure with a classification.
type AdapterError struct {
	Venue domain.Venue
	Kind  ErrorKind
	Op    string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Venue, e.Op, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the operation that produced this error is
// safe to retry without operator intervention.
func (e *AdapterError) Retryable() bool {
	switch e.Kind {
	case ErrTransient, ErrRateLimited:
		return true
	default:
		return false
	}
}

// OrderRequest describes a limit order to place on a venue.
type OrderRequest struct {
	Pair   domain.Pair
	Side   domain.TradeSide
	Price  float64
	Amount float64
}

// OrderStatus is the queried state of a previously submitted order.
type OrderStatus struct {
	OrderID      string
	Filled       bool
	FilledAmount float64
	FilledPrice  float64
}

// WithdrawalRequest describes a withdrawal to initiate from a venue.
type WithdrawalRequest struct {
	Currency domain.Currency
	Amount   float64
	Network  string
	Address  string
}

// Adapter is the contract every exchange integration implements. All
// methods are safe to call concurrently.
type Adapter interface {
	Name() domain.Venue

	FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error)
	FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error)
	FetchBalance(ctx context.Context, currency domain.Currency) (domain.Balance, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	FetchOrder(ctx context.Context, orderID string) (OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error

	Withdraw(ctx context.Context, req WithdrawalRequest) (withdrawalID string, err error)
	DepositAddress(ctx context.Context, currency domain.Currency, network string) (address string, err error)
	WithdrawalFee(ctx context.Context, currency domain.Currency, network string) (fee float64, supported bool, err error)
	FetchWithdrawalStatus(ctx context.Context, withdrawalID string) (domain.TransferStatus, error)

	Health(ctx context.Context) error
}

// Clock abstracts time.Now for tests.
type Clock func() time.Time
