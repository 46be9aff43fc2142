// Package coinbase implements the venue.Adapter contract against
// Coinbase Advanced Trade's REST API.
package coinbase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config holds the Coinbase client's connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
}

// Client is a venue.Adapter backed by Coinbase's REST endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// NewClient builds a Client, filling in Coinbase's production defaults
// for any unset Config field.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coinbase.com"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
	}
}

func (c *Client) Name() domain.Venue { return domain.VenueCoinbase }

func productID(p domain.Pair) string {
	return fmt.Sprintf("%s-%s", p.Base, p.Quote)
}

func (c *Client) request(ctx context.Context, method, path string, body []byte, signed bool, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.apiKey == "" || c.apiSecret == "" {
			return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrAuth, Op: path, Err: fmt.Errorf("missing api credentials")}
		}
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(c.apiSecret))
		mac.Write([]byte(ts + method + path + string(body)))
		sign := hex.EncodeToString(mac.Sum(nil))

		req.Header.Set("CB-ACCESS-KEY", c.apiKey)
		req.Header.Set("CB-ACCESS-SIGN", sign)
		req.Header.Set("CB-ACCESS-TIMESTAMP", ts)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: path, Err: err}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrRateLimited, Op: path, Err: fmt.Errorf("http 429")}
	}
	if resp.StatusCode != http.StatusOK {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: path, Err: fmt.Errorf("http %d: %s", resp.StatusCode, string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: path, Err: err}
	}
	return nil
}

func (c *Client) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	var out struct {
		Bids []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	}
	path := fmt.Sprintf("/api/v3/brokerage/market/products/%s/book?limit=1", productID(pair))
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if len(out.Bids) == 0 || len(out.Asks) == 0 {
		return domain.TickerSnapshot{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_ticker", Err: fmt.Errorf("empty book for %s", pair)}
	}
	bid, _ := strconv.ParseFloat(out.Bids[0].Price, 64)
	ask, _ := strconv.ParseFloat(out.Asks[0].Price, 64)
	return domain.TickerSnapshot{Venue: c.Name(), Pair: pair, Bid: bid, Ask: ask, Timestamp: time.Now()}, nil
}

func (c *Client) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	var out struct {
		Bids []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"asks"`
	}
	path := fmt.Sprintf("/api/v3/brokerage/market/products/%s/book?limit=50", productID(pair))
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	snap := domain.OrderBookSnapshot{Venue: c.Name(), Pair: pair, Timestamp: time.Now()}
	for _, lvl := range out.Bids {
		price, _ := strconv.ParseFloat(lvl.Price, 64)
		size, _ := strconv.ParseFloat(lvl.Size, 64)
		snap.Bids = append(snap.Bids, domain.OrderBookLevel{Price: price, Size: size})
	}
	for _, lvl := range out.Asks {
		price, _ := strconv.ParseFloat(lvl.Price, 64)
		size, _ := strconv.ParseFloat(lvl.Size, 64)
		snap.Asks = append(snap.Asks, domain.OrderBookLevel{Price: price, Size: size})
	}
	return snap, nil
}

func (c *Client) FetchBalance(ctx context.Context, currency domain.Currency) (domain.Balance, error) {
	var out struct {
		Accounts []struct {
			Currency         string `json:"currency"`
			AvailableBalance struct {
				Value string `json:"value"`
			} `json:"available_balance"`
		} `json:"accounts"`
	}
	if err := c.request(ctx, http.MethodGet, "/api/v3/brokerage/accounts", nil, true, &out); err != nil {
		return domain.Balance{}, err
	}
	for _, a := range out.Accounts {
		if a.Currency == string(currency) {
			free, _ := strconv.ParseFloat(a.AvailableBalance.Value, 64)
			return domain.Balance{Venue: c.Name(), Currency: currency, Free: free}, nil
		}
	}
	return domain.Balance{Venue: c.Name(), Currency: currency}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	side := "BUY"
	if req.Side == domain.TradeSell {
		side = "SELL"
	}
	body, _ := json.Marshal(map[string]interface{}{
		"product_id": productID(req.Pair),
		"side":       side,
		"order_configuration": map[string]interface{}{
			"limit_limit_gtc": map[string]string{
				"base_size":   strconv.FormatFloat(req.Amount, 'f', -1, 64),
				"limit_price": strconv.FormatFloat(req.Price, 'f', -1, 64),
			},
		},
	})
	var out struct {
		SuccessResponse struct {
			OrderID string `json:"order_id"`
		} `json:"success_response"`
	}
	if err := c.request(ctx, http.MethodPost, "/api/v3/brokerage/orders", body, true, &out); err != nil {
		return "", err
	}
	return out.SuccessResponse.OrderID, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	var out struct {
		Order struct {
			Status           string `json:"status"`
			FilledSize       string `json:"filled_size"`
			AverageFilledPrice string `json:"average_filled_price"`
		} `json:"order"`
	}
	path := "/api/v3/brokerage/orders/historical/" + orderID
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	filledAmount, _ := strconv.ParseFloat(out.Order.FilledSize, 64)
	filledPrice, _ := strconv.ParseFloat(out.Order.AverageFilledPrice, 64)
	return venue.OrderStatus{
		OrderID:      orderID,
		Filled:       out.Order.Status == "FILLED",
		FilledAmount: filledAmount,
		FilledPrice:  filledPrice,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body, _ := json.Marshal(map[string]interface{}{"order_ids": []string{orderID}})
	return c.request(ctx, http.MethodPost, "/api/v3/brokerage/orders/batch_cancel", body, true, nil)
}

func (c *Client) Withdraw(ctx context.Context, req venue.WithdrawalRequest) (string, error) {
	// Advanced Trade has no public crypto-withdrawal endpoint; transfers
	// out of Coinbase go through the separate Coinbase (retail) API,
	// which the funds router treats as not supported for this venue.
	return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrNotSupported, Op: "withdraw", Err: fmt.Errorf("withdrawals not supported via brokerage api")}
}

func (c *Client) DepositAddress(ctx context.Context, currency domain.Currency, network string) (string, error) {
	return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrNotSupported, Op: "deposit_address", Err: fmt.Errorf("deposit address discovery not supported via brokerage api")}
}

func (c *Client) WithdrawalFee(ctx context.Context, currency domain.Currency, network string) (float64, bool, error) {
	return 0, false, nil
}

func (c *Client) FetchWithdrawalStatus(ctx context.Context, withdrawalID string) (domain.TransferStatus, error) {
	return domain.TransferUnknown, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrNotSupported, Op: "fetch_withdrawal_status", Err: fmt.Errorf("withdrawal status not supported via brokerage api")}
}

func (c *Client) Health(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "/api/v3/brokerage/products", nil, true, nil)
}

var _ venue.Adapter = (*Client)(nil)
