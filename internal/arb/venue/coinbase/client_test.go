package coinbase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

func TestProductID(t *testing.T) {
	assert.Equal(t, "BTC-USD", productID(domain.Pair{Base: "BTC", Quote: "USD"}))
}

func TestClient_FetchTicker_FromBookLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/products/BTC-USD/book")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"bids": []map[string]string{{"price": "50000.0"}},
			"asks": []map[string]string{{"price": "50100.0"}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", APISecret: "s", RequestTimeout: 2 * time.Second})
	snap, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, snap.Bid)
	assert.Equal(t, 50100.0, snap.Ask)
}

func TestClient_FetchTicker_EmptyBookIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"bids": []interface{}{}, "asks": []interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", APISecret: "s"})
	_, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.Error(t, err)
}

func TestClient_Withdraw_NotSupported(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://unused.example"})
	_, err := c.Withdraw(context.Background(), venue.WithdrawalRequest{Currency: "BTC", Amount: 1, Network: "bitcoin", Address: "addr"})
	require.Error(t, err)
}

func TestClient_DepositAddress_NotSupported(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://unused.example"})
	_, err := c.DepositAddress(context.Background(), "BTC", "bitcoin")
	require.Error(t, err)
}

func TestClient_SignedRequest_RequiresCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://unused.example"})
	_, err := c.FetchBalance(context.Background(), "BTC")
	require.Error(t, err)
}
