// Package binance implements the venue.Adapter contract against Binance's
// REST API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config holds the Binance client's connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
}

// Client is a venue.Adapter backed by Binance's REST endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// NewClient builds a Client, filling in Binance's production defaults for
// any unset Config field.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
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

func (c *Client) Name() domain.Venue { return domain.VenueBinance }

func symbol(p domain.Pair) string {
	return string(p.Base) + string(p.Quote)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, out interface{}) error {
	if signed {
		if c.apiKey == "" || c.apiSecret == "" {
			return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrAuth, Op: path, Err: fmt.Errorf("missing api credentials")}
		}
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		mac := hmac.New(sha256.New, []byte(c.apiSecret))
		mac.Write([]byte(params.Encode()))
		params.Set("signature", hex.EncodeToString(mac.Sum(nil)))
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrAuth, Op: path, Err: fmt.Errorf("missing api credentials")}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(params.Encode()))
	params.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: op, Err: err}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrRateLimited, Op: op, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode, string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: op, Err: err}
	}
	return nil
}

func (c *Client) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	var out struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := c.get(ctx, "/api/v3/ticker/bookTicker", url.Values{"symbol": {symbol(pair)}}, false, &out); err != nil {
		return domain.TickerSnapshot{}, err
	}
	bid, _ := strconv.ParseFloat(out.BidPrice, 64)
	ask, _ := strconv.ParseFloat(out.AskPrice, 64)
	return domain.TickerSnapshot{Venue: c.Name(), Pair: pair, Bid: bid, Ask: ask, Timestamp: time.Now()}, nil
}

func (c *Client) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	var out struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	params := url.Values{"symbol": {symbol(pair)}, "limit": {"50"}}
	if err := c.get(ctx, "/api/v3/depth", params, false, &out); err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	snap := domain.OrderBookSnapshot{Venue: c.Name(), Pair: pair, Timestamp: time.Now()}
	for _, lvl := range out.Bids {
		snap.Bids = append(snap.Bids, parseLevel(lvl))
	}
	for _, lvl := range out.Asks {
		snap.Asks = append(snap.Asks, parseLevel(lvl))
	}
	return snap, nil
}

func parseLevel(raw [2]string) domain.OrderBookLevel {
	price, _ := strconv.ParseFloat(raw[0], 64)
	size, _ := strconv.ParseFloat(raw[1], 64)
	return domain.OrderBookLevel{Price: price, Size: size}
}

func (c *Client) FetchBalance(ctx context.Context, currency domain.Currency) (domain.Balance, error) {
	var out struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := c.get(ctx, "/api/v3/account", url.Values{}, true, &out); err != nil {
		return domain.Balance{}, err
	}
	for _, b := range out.Balances {
		if b.Asset == string(currency) {
			free, _ := strconv.ParseFloat(b.Free, 64)
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
	params := url.Values{
		"symbol":      {symbol(req.Pair)},
		"side":        {side},
		"type":        {"LIMIT"},
		"timeInForce": {"GTC"},
		"quantity":    {strconv.FormatFloat(req.Amount, 'f', -1, 64)},
		"price":       {strconv.FormatFloat(req.Price, 'f', -1, 64)},
	}
	var out struct {
		OrderID int64 `json:"orderId"`
	}
	if err := c.post(ctx, "/api/v3/order", params, &out); err != nil {
		return "", err
	}
	return strconv.FormatInt(out.OrderID, 10), nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	var out struct {
		Status              string `json:"status"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	}
	if err := c.get(ctx, "/api/v3/order", url.Values{"orderId": {orderID}}, true, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	filledAmount, _ := strconv.ParseFloat(out.ExecutedQty, 64)
	filledQuote, _ := strconv.ParseFloat(out.CummulativeQuoteQty, 64)
	var filledPrice float64
	if filledAmount > 0 {
		filledPrice = filledQuote / filledAmount
	}
	return venue.OrderStatus{
		OrderID:      orderID,
		Filled:       out.Status == "FILLED",
		FilledAmount: filledAmount,
		FilledPrice:  filledPrice,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	params := url.Values{"orderId": {orderID}}
	return c.deleteAuthed(ctx, "/api/v3/order", params)
}

func (c *Client) deleteAuthed(ctx context.Context, path string, params url.Values) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrAuth, Op: path, Err: fmt.Errorf("missing api credentials")}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(params.Encode()))
	params.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req, path, nil)
}

func (c *Client) Withdraw(ctx context.Context, req venue.WithdrawalRequest) (string, error) {
	params := url.Values{
		"coin":    {string(req.Currency)},
		"network": {req.Network},
		"address": {req.Address},
		"amount":  {strconv.FormatFloat(req.Amount, 'f', -1, 64)},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/sapi/v1/capital/withdraw/apply", params, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DepositAddress(ctx context.Context, currency domain.Currency, network string) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	params := url.Values{"coin": {string(currency)}, "network": {network}}
	if err := c.get(ctx, "/sapi/v1/capital/deposit/address", params, true, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func (c *Client) WithdrawalFee(ctx context.Context, currency domain.Currency, network string) (float64, bool, error) {
	var out []struct {
		Coin       string `json:"coin"`
		NetworkList []struct {
			Network        string `json:"network"`
			WithdrawFee    string `json:"withdrawFee"`
		} `json:"networkList"`
	}
	if err := c.get(ctx, "/sapi/v1/capital/config/getall", url.Values{}, true, &out); err != nil {
		return 0, false, err
	}
	for _, coin := range out {
		if coin.Coin != string(currency) {
			continue
		}
		for _, n := range coin.NetworkList {
			if n.Network == network {
				fee, _ := strconv.ParseFloat(n.WithdrawFee, 64)
				return fee, true, nil
			}
		}
	}
	return 0, false, nil
}

func (c *Client) FetchWithdrawalStatus(ctx context.Context, withdrawalID string) (domain.TransferStatus, error) {
	var out []struct {
		ID     string `json:"id"`
		Status int    `json:"status"`
	}
	if err := c.get(ctx, "/sapi/v1/capital/withdraw/history", url.Values{}, true, &out); err != nil {
		return domain.TransferUnknown, err
	}
	for _, w := range out {
		if w.ID != withdrawalID {
			continue
		}
		switch w.Status {
		case 6:
			return domain.TransferConfirmed, nil
		case 1, 2, 4, 5:
			return domain.TransferSent, nil
		case 3:
			return domain.TransferFailed, nil
		}
	}
	return domain.TransferUnknown, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/api/v3/ping", url.Values{}, false, nil)
}

var _ venue.Adapter = (*Client)(nil)
