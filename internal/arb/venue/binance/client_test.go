package binance

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

func TestSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSD", symbol(domain.Pair{Base: "BTC", Quote: "USD"}))
}

func TestClient_FetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/bookTicker", r.URL.Path)
		assert.Equal(t, "BTCUSD", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(map[string]string{"bidPrice": "50000.0", "askPrice": "50100.0"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	snap, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, snap.Bid)
	assert.Equal(t, 50100.0, snap.Ask)
}

func TestClient_Get_SignedRequiresCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://unused.example"})
	_, err := c.FetchBalance(context.Background(), "BTC")
	require.Error(t, err)
}

func TestClient_Do_RateLimitedOnBannedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(418)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	_, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.Error(t, err)
	var adapterErr *venue.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, venue.ErrRateLimited, adapterErr.Kind)
}

func TestClient_FetchOrder_ComputesFilledPriceFromQuoteQty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":              "FILLED",
			"executedQty":         "2",
			"cummulativeQuoteQty": "100000",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", APISecret: "s"})
	status, err := c.FetchOrder(context.Background(), "123")
	require.NoError(t, err)
	assert.True(t, status.Filled)
	assert.Equal(t, 50000.0, status.FilledPrice)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ping", r.URL.Path)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	assert.NoError(t, c.Health(context.Background()))
}
