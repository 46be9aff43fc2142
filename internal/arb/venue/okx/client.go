// Package okx implements the venue.Adapter contract against OKX's REST
// API.
package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config holds the OKX client's connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	Passphrase     string
	RequestTimeout time.Duration
}

// Client is a venue.Adapter backed by OKX's REST endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
}

// NewClient builds a Client, filling in OKX's production defaults for any
// unset Config field.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.okx.com"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		passphrase: cfg.Passphrase,
	}
}

func (c *Client) Name() domain.Venue { return domain.VenueOKX }

func instID(p domain.Pair) string {
	return fmt.Sprintf("%s-%s", p.Base, p.Quote)
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) request(ctx context.Context, method, path string, body []byte, signed bool, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.apiKey == "" || c.apiSecret == "" || c.passphrase == "" {
			return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrAuth, Op: path, Err: fmt.Errorf("missing api credentials")}
		}
		ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
		prehash := ts + method + path + string(body)
		mac := hmac.New(sha256.New, []byte(c.apiSecret))
		mac.Write([]byte(prehash))
		sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		req.Header.Set("OK-ACCESS-KEY", c.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", sign)
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)
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

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: path, Err: err}
	}
	if env.Code != "0" && env.Code != "" {
		return &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: path, Err: fmt.Errorf("okx error %s: %s", env.Code, env.Msg)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	var out []struct {
		BidPx string `json:"bidPx"`
		AskPx string `json:"askPx"`
	}
	if err := c.request(ctx, http.MethodGet, "/api/v5/market/ticker?instId="+instID(pair), nil, false, &out); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if len(out) == 0 {
		return domain.TickerSnapshot{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_ticker", Err: fmt.Errorf("no ticker for %s", pair)}
	}
	bid, _ := strconv.ParseFloat(out[0].BidPx, 64)
	ask, _ := strconv.ParseFloat(out[0].AskPx, 64)
	return domain.TickerSnapshot{Venue: c.Name(), Pair: pair, Bid: bid, Ask: ask, Timestamp: time.Now()}, nil
}

func (c *Client) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	var out []struct {
		Bids [][4]string `json:"bids"`
		Asks [][4]string `json:"asks"`
	}
	path := fmt.Sprintf("/api/v5/market/books?instId=%s&sz=50", instID(pair))
	if err := c.request(ctx, http.MethodGet, path, nil, false, &out); err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	snap := domain.OrderBookSnapshot{Venue: c.Name(), Pair: pair, Timestamp: time.Now()}
	if len(out) == 0 {
		return snap, nil
	}
	for _, lvl := range out[0].Bids {
		snap.Bids = append(snap.Bids, parseLevel4(lvl))
	}
	for _, lvl := range out[0].Asks {
		snap.Asks = append(snap.Asks, parseLevel4(lvl))
	}
	return snap, nil
}

func parseLevel4(raw [4]string) domain.OrderBookLevel {
	price, _ := strconv.ParseFloat(raw[0], 64)
	size, _ := strconv.ParseFloat(raw[1], 64)
	return domain.OrderBookLevel{Price: price, Size: size}
}

func (c *Client) FetchBalance(ctx context.Context, currency domain.Currency) (domain.Balance, error) {
	var out []struct {
		Details []struct {
			Ccy     string `json:"ccy"`
			AvailBal string `json:"availBal"`
		} `json:"details"`
	}
	if err := c.request(ctx, http.MethodGet, "/api/v5/account/balance", nil, true, &out); err != nil {
		return domain.Balance{}, err
	}
	for _, acct := range out {
		for _, d := range acct.Details {
			if d.Ccy == string(currency) {
				free, _ := strconv.ParseFloat(d.AvailBal, 64)
				return domain.Balance{Venue: c.Name(), Currency: currency, Free: free}, nil
			}
		}
	}
	return domain.Balance{Venue: c.Name(), Currency: currency}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	side := "buy"
	if req.Side == domain.TradeSell {
		side = "sell"
	}
	body, _ := json.Marshal(map[string]string{
		"instId":  instID(req.Pair),
		"tdMode":  "cash",
		"side":    side,
		"ordType": "limit",
		"px":      strconv.FormatFloat(req.Price, 'f', -1, 64),
		"sz":      strconv.FormatFloat(req.Amount, 'f', -1, 64),
	})
	var out []struct {
		OrdID string `json:"ordId"`
	}
	if err := c.request(ctx, http.MethodPost, "/api/v5/trade/order", body, true, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "place_order", Err: fmt.Errorf("no order id returned")}
	}
	return out[0].OrdID, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	var out []struct {
		State    string `json:"state"`
		AccFillSz string `json:"accFillSz"`
		AvgPx     string `json:"avgPx"`
	}
	path := fmt.Sprintf("/api/v5/trade/order?ordId=%s", orderID)
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	if len(out) == 0 {
		return venue.OrderStatus{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_order", Err: fmt.Errorf("order %s not found", orderID)}
	}
	filledAmount, _ := strconv.ParseFloat(out[0].AccFillSz, 64)
	filledPrice, _ := strconv.ParseFloat(out[0].AvgPx, 64)
	return venue.OrderStatus{
		OrderID:      orderID,
		Filled:       out[0].State == "filled",
		FilledAmount: filledAmount,
		FilledPrice:  filledPrice,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body, _ := json.Marshal(map[string]string{"ordId": orderID})
	return c.request(ctx, http.MethodPost, "/api/v5/trade/cancel-order", body, true, nil)
}

func (c *Client) Withdraw(ctx context.Context, req venue.WithdrawalRequest) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"ccy":     string(req.Currency),
		"amt":     strconv.FormatFloat(req.Amount, 'f', -1, 64),
		"dest":    "4",
		"toAddr":  req.Address,
		"chain":   req.Network,
	})
	var out []struct {
		WdID string `json:"wdId"`
	}
	if err := c.request(ctx, http.MethodPost, "/api/v5/asset/withdrawal", body, true, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "withdraw", Err: fmt.Errorf("no withdrawal id returned")}
	}
	return out[0].WdID, nil
}

func (c *Client) DepositAddress(ctx context.Context, currency domain.Currency, network string) (string, error) {
	var out []struct {
		Addr  string `json:"addr"`
		Chain string `json:"chain"`
	}
	path := "/api/v5/asset/deposit-address?ccy=" + string(currency)
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return "", err
	}
	for _, a := range out {
		if a.Chain == network {
			return a.Addr, nil
		}
	}
	if len(out) > 0 {
		return out[0].Addr, nil
	}
	return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "deposit_address", Err: fmt.Errorf("no deposit address for %s/%s", currency, network)}
}

func (c *Client) WithdrawalFee(ctx context.Context, currency domain.Currency, network string) (float64, bool, error) {
	var out []struct {
		Ccy        string `json:"ccy"`
		Chain      string `json:"chain"`
		MinFee     string `json:"minFee"`
	}
	path := "/api/v5/asset/currencies?ccy=" + string(currency)
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return 0, false, err
	}
	for _, row := range out {
		if row.Chain == network {
			fee, _ := strconv.ParseFloat(row.MinFee, 64)
			return fee, true, nil
		}
	}
	return 0, false, nil
}

func (c *Client) FetchWithdrawalStatus(ctx context.Context, withdrawalID string) (domain.TransferStatus, error) {
	var out []struct {
		WdID  string `json:"wdId"`
		State string `json:"state"`
	}
	path := "/api/v5/asset/withdrawal-history?wdId=" + withdrawalID
	if err := c.request(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return domain.TransferUnknown, err
	}
	for _, w := range out {
		if w.WdID != withdrawalID {
			continue
		}
		switch w.State {
		case "2":
			return domain.TransferConfirmed, nil
		case "-1", "-2":
			return domain.TransferFailed, nil
		default:
			return domain.TransferSent, nil
		}
	}
	return domain.TransferUnknown, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "/api/v5/public/time", nil, false, nil)
}

var _ venue.Adapter = (*Client)(nil)
