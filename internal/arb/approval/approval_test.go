package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

func TestManager_RequestApproval_UsesChannelDecision(t *testing.T) {
	ch := NewInMemoryChannel(DecisionApprove)
	m := NewManager(ch)

	decision, err := m.RequestApproval(context.Background(), domain.Opportunity{ID: "opp-1"})
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, decision)
	assert.Len(t, ch.Requests(), 1)
}

func TestManager_Decide_ResolvesPendingRequest(t *testing.T) {
	blocking := make(chan struct{})
	ch := blockingChannel{unblock: blocking}
	m := NewManager(ch)

	resultCh := make(chan Decision, 1)
	go func() {
		d, _ := m.RequestApproval(context.Background(), domain.Opportunity{ID: "opp-2"})
		resultCh <- d
	}()

	// give the goroutine a moment to register as pending
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Decide("opp-2", DecisionReject))

	select {
	case d := <-resultCh:
		assert.Equal(t, DecisionReject, d)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decision")
	}
	close(blocking)
}

func TestManager_Decide_ErrorsWhenNotPending(t *testing.T) {
	m := NewManager(NewInMemoryChannel(DecisionApprove))
	err := m.Decide("does-not-exist", DecisionApprove)
	assert.Error(t, err)
}

func TestTimeoutChannel_ConvertsContextCancellation(t *testing.T) {
	blocking := make(chan struct{})
	defer close(blocking)
	ch := NewTimeoutChannel(blockingChannel{unblock: blocking})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	decision, err := ch.RequestApproval(ctx, Request{Opportunity: domain.Opportunity{ID: "opp-3"}})
	require.NoError(t, err)
	assert.Equal(t, DecisionTimeout, decision)
}

type blockingChannel struct {
	unblock chan struct{}
}

func (b blockingChannel) RequestApproval(ctx context.Context, req Request) (Decision, error) {
	select {
	case <-b.unblock:
		return DecisionApprove, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
