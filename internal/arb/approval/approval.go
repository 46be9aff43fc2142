// Package approval gates an opportunity's move from detected to
// executing behind an operator decision, delivered through a pluggable
// notification channel.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// Decision is the operator's response to an approval request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionTimeout Decision = "timeout"
)

// Request is one opportunity awaiting an operator decision.
type Request struct {
	Opportunity domain.Opportunity
	RequestedAt time.Time
}

// Channel delivers an approval request to an operator and returns their
// decision, blocking until the decision arrives or ctx is canceled. A
// real deployment wires this to an external notification transport; this
// package only defines the contract and an in-memory implementation
// useful for tests and for operating without an external dependency.
type Channel interface {
	RequestApproval(ctx context.Context, req Request) (Decision, error)
}

// TimeoutChannel wraps another Channel and converts ctx.Done() into a
// DecisionTimeout rather than surfacing ctx.Err() directly, matching how
// an operator's non-response should read from downstream code: a
// decision was made by default, not an error.
type TimeoutChannel struct {
	inner Channel
}

// NewTimeoutChannel wraps inner so context cancellation reads as a
// timeout decision instead of an error.
func NewTimeoutChannel(inner Channel) *TimeoutChannel {
	return &TimeoutChannel{inner: inner}
}

func (c *TimeoutChannel) RequestApproval(ctx context.Context, req Request) (Decision, error) {
	decision, err := c.inner.RequestApproval(ctx, req)
	if err != nil && ctx.Err() != nil {
		return DecisionTimeout, nil
	}
	return decision, err
}

// Manager gates opportunities behind approval decisions and tracks
// outstanding requests so a late decision can still be looked up by
// opportunity ID.
type Manager struct {
	channel Channel

	mu      sync.Mutex
	pending map[string]chan Decision
}

// NewManager builds a Manager delivering requests over channel.
func NewManager(channel Channel) *Manager {
	return &Manager{channel: channel, pending: make(map[string]chan Decision)}
}

// RequestApproval asks the channel to approve opp and waits for the
// decision, registering the opportunity as pending for the duration so a
// concurrent call to Decide can resolve it.
func (m *Manager) RequestApproval(ctx context.Context, opp domain.Opportunity) (Decision, error) {
	ch := make(chan Decision, 1)
	m.mu.Lock()
	m.pending[opp.ID] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, opp.ID)
		m.mu.Unlock()
	}()

	result := make(chan struct {
		d Decision
		e error
	}, 1)
	go func() {
		d, e := m.channel.RequestApproval(ctx, Request{Opportunity: opp, RequestedAt: time.Now()})
		result <- struct {
			d Decision
			e error
		}{d, e}
	}()

	select {
	case r := <-result:
		return r.d, r.e
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return DecisionTimeout, nil
	}
}

// Decide resolves a pending approval request out of band, e.g. from an
// HTTP callback handler receiving an operator's click. It returns an
// error if no request for opportunityID is currently pending.
func (m *Manager) Decide(opportunityID string, decision Decision) error {
	m.mu.Lock()
	ch, ok := m.pending[opportunityID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending approval for opportunity %s", opportunityID)
	}
	select {
	case ch <- decision:
		return nil
	default:
		return fmt.Errorf("approval for opportunity %s already decided", opportunityID)
	}
}

// InMemoryChannel is a Channel test double and fallback for deployments
// without an external notification transport: every request is recorded
// and approved or rejected by a caller-supplied default decision rather
// than ever waiting on real operator input.
type InMemoryChannel struct {
	Default Decision

	mu       sync.Mutex
	requests []Request
}

// NewInMemoryChannel builds an InMemoryChannel that resolves every
// request with defaultDecision.
func NewInMemoryChannel(defaultDecision Decision) *InMemoryChannel {
	return &InMemoryChannel{Default: defaultDecision}
}

func (c *InMemoryChannel) RequestApproval(ctx context.Context, req Request) (Decision, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.Default, nil
}

// Requests returns every request this channel has received, in order.
func (c *InMemoryChannel) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}
