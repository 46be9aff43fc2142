package kraken

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

func TestKrakenPair_RewritesBTCToXBT(t *testing.T) {
	assert.Equal(t, "XBTUSD", krakenPair(domain.Pair{Base: "BTC", Quote: "USD"}))
	assert.Equal(t, "ETHUSD", krakenPair(domain.Pair{Base: "ETH", Quote: "USD"}))
}

func TestClient_FetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		resp := map[string]interface{}{
			"error": []string{},
			"result": map[string]interface{}{
				"XXBTZUSD": map[string]interface{}{
					"a": []string{"50100.0", "1", "1.0"},
					"b": []string{"50000.0", "2", "2.0"},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	snap, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 50100.0, snap.Ask)
	assert.Equal(t, 50000.0, snap.Bid)
	assert.Equal(t, domain.VenueKraken, snap.Venue)
}

func TestClient_FetchTicker_PropagatesKrakenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"error": []string{"EQuery:Unknown asset pair"}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	_, err := c.FetchTicker(context.Background(), domain.Pair{Base: "ZZZ", Quote: "USD"})
	require.Error(t, err)
}

func TestClient_PrivatePost_RequiresCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://unused.example"})
	_, err := c.FetchBalance(context.Background(), "BTC")
	require.Error(t, err)
}

func TestClient_Do_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	_, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.Error(t, err)
	var adapterErr *venue.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, venue.ErrRateLimited, adapterErr.Kind)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Time", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": []string{}, "result": map[string]interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	assert.NoError(t, c.Health(context.Background()))
}

func TestNewClient_FillsDefaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, "https://api.kraken.com", c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}
