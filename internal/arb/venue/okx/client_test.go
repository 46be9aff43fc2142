package okx

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
)

func TestInstID(t *testing.T) {
	assert.Equal(t, "BTC-USD", instID(domain.Pair{Base: "BTC", Quote: "USD"}))
}

func TestClient_FetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.String(), "instId=BTC-USD")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "0",
			"msg":  "",
			"data": []map[string]string{{"bidPx": "50000.0", "askPx": "50100.0"}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	snap, err := c.FetchTicker(context.Background(), domain.Pair{Base: "BTC", Quote: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, snap.Bid)
	assert.Equal(t, 50100.0, snap.Ask)
}

func TestClient_Request_PropagatesOKXErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": "51001", "msg": "instrument does not exist"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.FetchTicker(context.Background(), domain.Pair{Base: "ZZZ", Quote: "USD"})
	require.Error(t, err)
}

func TestClient_SignedRequest_RequiresFullCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://unused.example", APIKey: "k", APISecret: "s"})
	_, err := c.FetchBalance(context.Background(), "BTC")
	require.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/time", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": "0"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	assert.NoError(t, c.Health(context.Background()))
}
