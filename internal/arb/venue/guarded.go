package venue

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// newBreaker trips on three straight failures, or a 5% failure rate once
// at least 20 requests have been observed in the rolling interval.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Guarded wraps an Adapter with a per-venue circuit breaker and token
// bucket rate limiter, so callers never need to reason about either.
type Guarded struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuarded wraps inner with a circuit breaker and a limiter allowing rps
// requests per second with the given burst.
func NewGuarded(inner Adapter, rps float64, burst int) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: newBreaker(string(inner.Name())),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (g *Guarded) Name() domain.Venue { return g.inner.Name() }

func (g *Guarded) wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &AdapterError{Venue: g.inner.Name(), Kind: ErrRateLimited, Op: "wait", Err: err}
	}
	return nil
}

func execute[T any](g *Guarded, ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := g.wait(ctx); err != nil {
		return zero, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, &AdapterError{Venue: g.inner.Name(), Kind: ErrTransient, Op: op, Err: err}
		}
		return zero, err
	}
	return res.(T), nil
}

func (g *Guarded) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	return execute(g, ctx, "fetch_ticker", func() (domain.TickerSnapshot, error) {
		return g.inner.FetchTicker(ctx, pair)
	})
}

func (g *Guarded) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	return execute(g, ctx, "fetch_order_book", func() (domain.OrderBookSnapshot, error) {
		return g.inner.FetchOrderBook(ctx, pair)
	})
}

func (g *Guarded) FetchBalance(ctx context.Context, currency domain.Currency) (domain.Balance, error) {
	return execute(g, ctx, "fetch_balance", func() (domain.Balance, error) {
		return g.inner.FetchBalance(ctx, currency)
	})
}

func (g *Guarded) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	return execute(g, ctx, "place_order", func() (string, error) {
		return g.inner.PlaceOrder(ctx, req)
	})
}

func (g *Guarded) FetchOrder(ctx context.Context, orderID string) (OrderStatus, error) {
	return execute(g, ctx, "fetch_order", func() (OrderStatus, error) {
		return g.inner.FetchOrder(ctx, orderID)
	})
}

func (g *Guarded) CancelOrder(ctx context.Context, orderID string) error {
	_, err := execute(g, ctx, "cancel_order", func() (struct{}, error) {
		return struct{}{}, g.inner.CancelOrder(ctx, orderID)
	})
	return err
}

func (g *Guarded) Withdraw(ctx context.Context, req WithdrawalRequest) (string, error) {
	return execute(g, ctx, "withdraw", func() (string, error) {
		return g.inner.Withdraw(ctx, req)
	})
}

func (g *Guarded) DepositAddress(ctx context.Context, currency domain.Currency, network string) (string, error) {
	return execute(g, ctx, "deposit_address", func() (string, error) {
		return g.inner.DepositAddress(ctx, currency, network)
	})
}

func (g *Guarded) WithdrawalFee(ctx context.Context, currency domain.Currency, network string) (float64, bool, error) {
	type result struct {
		fee       float64
		supported bool
	}
	r, err := execute(g, ctx, "withdrawal_fee", func() (result, error) {
		fee, supported, err := g.inner.WithdrawalFee(ctx, currency, network)
		return result{fee, supported}, err
	})
	return r.fee, r.supported, err
}

func (g *Guarded) FetchWithdrawalStatus(ctx context.Context, withdrawalID string) (domain.TransferStatus, error) {
	return execute(g, ctx, "fetch_withdrawal_status", func() (domain.TransferStatus, error) {
		return g.inner.FetchWithdrawalStatus(ctx, withdrawalID)
	})
}

func (g *Guarded) Health(ctx context.Context) error {
	_, err := execute(g, ctx, "health", func() (struct{}, error) {
		return struct{}{}, g.inner.Health(ctx)
	})
	return err
}
