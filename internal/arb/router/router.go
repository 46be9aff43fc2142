// Package router rebalances currency between venues by withdrawing from
// one exchange and depositing into another, serializing concurrent
// transfers of the same currency off the same venue with a distributed
// lock and falling back to a static fee table when a venue adapter
// cannot report its own withdrawal fee.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/arbengine/internal/arb/cache"
	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/metrics"
	"github.com/sawpanic/arbengine/internal/arb/store"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config tunes the router's locking and confirmation-polling behavior.
type Config struct {
	LockTTL          time.Duration
	MaxTransferTime  time.Duration
	MonitorInterval  time.Duration
	NetworkFees       map[string]float64
	PreferredNetworks map[domain.Currency]string
}

// Router moves funds of one currency from one venue to another on
// request.
type Router struct {
	cfg     Config
	venues  map[domain.Venue]venue.Adapter
	locks   *cache.Cache
	repo    store.TransfersRepo
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// New builds a Router over the given venue adapters.
func New(cfg Config, venues map[domain.Venue]venue.Adapter, locks *cache.Cache, repo store.TransfersRepo, m *metrics.Metrics, log zerolog.Logger) *Router {
	return &Router{cfg: cfg, venues: venues, locks: locks, repo: repo, metrics: m, log: log, now: time.Now}
}

func transferLockName(fromVenue domain.Venue, currency domain.Currency) string {
	return fmt.Sprintf("transfer:%s:%s", fromVenue, currency)
}

// Transfer withdraws amount of currency from fromVenue and deposits it to
// toVenue, holding a single-flight lock for the duration so two transfers
// of the same currency off the same venue never race each other's
// balance check. It blocks until the lock is available or ctx expires.
func (r *Router) Transfer(ctx context.Context, fromVenue, toVenue domain.Venue, currency domain.Currency, amount float64) (*domain.Transfer, error) {
	from, ok := r.venues[fromVenue]
	if !ok {
		return nil, fmt.Errorf("no adapter for venue %s", fromVenue)
	}
	to, ok := r.venues[toVenue]
	if !ok {
		return nil, fmt.Errorf("no adapter for venue %s", toVenue)
	}

	lock, err := r.acquireLockBlocking(ctx, transferLockName(fromVenue, currency))
	if err != nil {
		return nil, err
	}
	defer func() {
		if _, err := lock.Release(ctx); err != nil {
			r.log.Warn().Err(err).Str("venue", string(fromVenue)).Str("currency", string(currency)).Msg("release transfer lock failed")
		}
	}()

	balance, err := from.FetchBalance(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	if balance.Free < amount {
		return nil, fmt.Errorf("insufficient balance on %s: have %.8f, need %.8f", fromVenue, balance.Free, amount)
	}

	network := r.preferredNetwork(currency)
	fee, err := r.resolveFee(ctx, from, currency, network)
	if err != nil {
		return nil, fmt.Errorf("resolve withdrawal fee: %w", err)
	}

	address, err := to.DepositAddress(ctx, currency, network)
	if err != nil {
		return nil, fmt.Errorf("deposit address on %s: %w", toVenue, err)
	}

	transfer := &domain.Transfer{
		ID:        uuid.NewString(),
		FromVenue: fromVenue,
		ToVenue:   toVenue,
		Currency:  currency,
		Amount:    amount,
		Network:   network,
		Fee:       fee,
		Status:    domain.TransferPending,
		CreatedAt: r.now(),
	}
	if err := r.persist(ctx, *transfer); err != nil {
		return nil, err
	}

	withdrawID, err := from.Withdraw(ctx, venue.WithdrawalRequest{
		Currency: currency,
		Amount:   amount,
		Network:  network,
		Address:  address,
	})
	if err != nil {
		transfer.Status = domain.TransferFailed
		transfer.UpdatedAt = r.now()
		r.updateStatus(ctx, transfer.ID, domain.TransferFailed)
		r.metrics.TransferOutcomeTotal.WithLabelValues(string(domain.TransferFailed)).Inc()
		return transfer, fmt.Errorf("withdraw from %s: %w", fromVenue, err)
	}
	transfer.WithdrawID = withdrawID
	transfer.Status = domain.TransferSent
	transfer.UpdatedAt = r.now()
	r.updateStatus(ctx, transfer.ID, domain.TransferSent)

	go r.monitor(context.Background(), from, transfer)

	return transfer, nil
}

// acquireLockBlocking retries the lock acquisition until it succeeds or
// ctx is done, since a transfer must wait its turn rather than abort
// outright when another transfer of the same currency is already in
// flight.
func (r *Router) acquireLockBlocking(ctx context.Context, name string) (*cache.Lock, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		lock, ok, err := r.locks.AcquireLock(ctx, name, r.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return lock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// preferredNetwork returns the network this router prefers for a
// currency, or the empty string to let the venue adapter pick its
// default.
func (r *Router) preferredNetwork(currency domain.Currency) string {
	if net, ok := r.cfg.PreferredNetworks[currency]; ok {
		return net
	}
	return ""
}

// resolveFee asks the adapter for its withdrawal fee first, then falls
// back to the static NetworkFees table keyed "currency:network" when the
// adapter cannot report one.
func (r *Router) resolveFee(ctx context.Context, adapter venue.Adapter, currency domain.Currency, network string) (float64, error) {
	fee, supported, err := adapter.WithdrawalFee(ctx, currency, network)
	if err != nil {
		return 0, err
	}
	if supported {
		return fee, nil
	}
	key := fmt.Sprintf("%s:%s", currency, network)
	if flat, ok := r.cfg.NetworkFees[key]; ok {
		return flat, nil
	}
	return 0, nil
}

// monitor polls the source venue for withdrawal confirmation at
// MonitorInterval cadence until it confirms, fails, or MaxTransferTime
// elapses, at which point the transfer is marked unknown rather than
// assumed lost or completed.
func (r *Router) monitor(ctx context.Context, from venue.Adapter, transfer *domain.Transfer) {
	deadline := r.now().Add(r.cfg.MaxTransferTime)
	ticker := time.NewTicker(r.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := from.FetchWithdrawalStatus(ctx, transfer.WithdrawID)
		if err != nil {
			r.log.Warn().Err(err).Str("transfer", transfer.ID).Msg("poll withdrawal status failed")
			continue
		}

		switch status {
		case domain.TransferConfirmed, domain.TransferFailed:
			r.updateStatus(ctx, transfer.ID, status)
			r.metrics.TransferOutcomeTotal.WithLabelValues(string(status)).Inc()
			return
		}

		if r.now().After(deadline) {
			r.updateStatus(ctx, transfer.ID, domain.TransferUnknown)
			r.metrics.TransferOutcomeTotal.WithLabelValues(string(domain.TransferUnknown)).Inc()
			return
		}
	}
}

func (r *Router) persist(ctx context.Context, t domain.Transfer) error {
	if r.repo == nil {
		return nil
	}
	return r.repo.Insert(ctx, store.TransferRecord{
		ID:         t.ID,
		FromVenue:  string(t.FromVenue),
		ToVenue:    string(t.ToVenue),
		Currency:   string(t.Currency),
		Amount:     t.Amount,
		Network:    t.Network,
		Fee:        t.Fee,
		WithdrawID: t.WithdrawID,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	})
}

func (r *Router) updateStatus(ctx context.Context, id string, status domain.TransferStatus) {
	if r.repo == nil {
		return
	}
	if err := r.repo.UpdateStatus(ctx, id, string(status)); err != nil {
		r.log.Warn().Err(err).Str("transfer", id).Msg("update transfer status failed")
	}
}
