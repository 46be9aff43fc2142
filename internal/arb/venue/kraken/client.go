// Package kraken implements the venue.Adapter contract against Kraken's
// REST API.
package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config holds the Kraken client's connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
}

// Client is a venue.Adapter backed by Kraken's public and private REST
// endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// NewClient builds a Client, filling in Kraken's production defaults for
// any unset Config field.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.kraken.com"
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

func (c *Client) Name() domain.Venue { return domain.VenueKraken }

type krakenResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) publicGet(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	u := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		u = fmt.Sprintf("%s?%s", u, params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	return c.do(req, path)
}

func (c *Client) privatePost(ctx context.Context, path string, data url.Values) (json.RawMessage, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrAuth, Op: path, Err: fmt.Errorf("missing api credentials")}
	}
	nonce := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 10)
	data.Set("nonce", nonce)
	body := data.Encode()

	signature, err := c.sign(path, nonce, body)
	if err != nil {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrInvalidArg, Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", c.apiKey)
	req.Header.Set("API-Sign", signature)

	return c.do(req, path)
}

func (c *Client) sign(path, nonce, body string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.apiSecret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	sha := sha256.New()
	sha.Write([]byte(nonce + body))
	shaSum := sha.Sum(nil)

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(shaSum)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c *Client) do(req *http.Request, op string) (json.RawMessage, error) {
	req.Header.Set("User-Agent", "arbengine/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrRateLimited, Op: op, Err: fmt.Errorf("http 429")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrTransient, Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode, string(b))}
	}

	var parsed krakenResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: op, Err: err}
	}
	if len(parsed.Error) > 0 {
		return nil, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: op, Err: fmt.Errorf("%v", parsed.Error)}
	}
	return parsed.Result, nil
}

// krakenPair renders a domain.Pair in Kraken's wire format, e.g.
// XBTUSD for BTC/USD.
func krakenPair(p domain.Pair) string {
	base := string(p.Base)
	if base == "BTC" {
		base = "XBT"
	}
	return base + string(p.Quote)
}

type tickerInfo struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
}

func (c *Client) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	params := url.Values{"pair": {krakenPair(pair)}}
	raw, err := c.publicGet(ctx, "/0/public/Ticker", params)
	if err != nil {
		return domain.TickerSnapshot{}, err
	}
	var tickers map[string]tickerInfo
	if err := json.Unmarshal(raw, &tickers); err != nil {
		return domain.TickerSnapshot{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_ticker", Err: err}
	}
	for _, t := range tickers {
		if len(t.Ask) < 1 || len(t.Bid) < 1 {
			continue
		}
		ask, _ := strconv.ParseFloat(t.Ask[0], 64)
		bid, _ := strconv.ParseFloat(t.Bid[0], 64)
		return domain.TickerSnapshot{
			Venue:     c.Name(),
			Pair:      pair,
			Bid:       bid,
			Ask:       ask,
			Timestamp: time.Now(),
		}, nil
	}
	return domain.TickerSnapshot{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_ticker", Err: fmt.Errorf("no ticker for %s", pair)}
}

type orderBookEntry struct {
	Asks [][3]interface{} `json:"asks"`
	Bids [][3]interface{} `json:"bids"`
}

func (c *Client) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	params := url.Values{"pair": {krakenPair(pair)}, "count": {"25"}}
	raw, err := c.publicGet(ctx, "/0/public/Depth", params)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	var books map[string]orderBookEntry
	if err := json.Unmarshal(raw, &books); err != nil {
		return domain.OrderBookSnapshot{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_order_book", Err: err}
	}
	for _, book := range books {
		snap := domain.OrderBookSnapshot{Venue: c.Name(), Pair: pair, Timestamp: time.Now()}
		for _, lvl := range book.Bids {
			snap.Bids = append(snap.Bids, toLevel(lvl))
		}
		for _, lvl := range book.Asks {
			snap.Asks = append(snap.Asks, toLevel(lvl))
		}
		return snap, nil
	}
	return domain.OrderBookSnapshot{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_order_book", Err: fmt.Errorf("no book for %s", pair)}
}

func toLevel(raw [3]interface{}) domain.OrderBookLevel {
	price, _ := strconv.ParseFloat(fmt.Sprint(raw[0]), 64)
	size, _ := strconv.ParseFloat(fmt.Sprint(raw[1]), 64)
	return domain.OrderBookLevel{Price: price, Size: size}
}

func (c *Client) FetchBalance(ctx context.Context, currency domain.Currency) (domain.Balance, error) {
	raw, err := c.privatePost(ctx, "/0/private/Balance", url.Values{})
	if err != nil {
		return domain.Balance{}, err
	}
	var balances map[string]string
	if err := json.Unmarshal(raw, &balances); err != nil {
		return domain.Balance{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_balance", Err: err}
	}
	key := string(currency)
	if key == "BTC" {
		key = "XXBT"
	}
	free, _ := strconv.ParseFloat(balances[key], 64)
	return domain.Balance{Venue: c.Name(), Currency: currency, Free: free}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	data := url.Values{
		"pair":      {krakenPair(req.Pair)},
		"type":      {string(req.Side)},
		"ordertype": {"limit"},
		"price":     {strconv.FormatFloat(req.Price, 'f', -1, 64)},
		"volume":    {strconv.FormatFloat(req.Amount, 'f', -1, 64)},
	}
	raw, err := c.privatePost(ctx, "/0/private/AddOrder", data)
	if err != nil {
		return "", err
	}
	var result struct {
		TxID []string `json:"txid"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "place_order", Err: err}
	}
	if len(result.TxID) == 0 {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "place_order", Err: fmt.Errorf("no order id returned")}
	}
	return result.TxID[0], nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	raw, err := c.privatePost(ctx, "/0/private/QueryOrders", url.Values{"txid": {orderID}})
	if err != nil {
		return venue.OrderStatus{}, err
	}
	var orders map[string]struct {
		Status      string `json:"status"`
		VolExec     string `json:"vol_exec"`
		Price       string `json:"price"`
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return venue.OrderStatus{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_order", Err: err}
	}
	o, ok := orders[orderID]
	if !ok {
		return venue.OrderStatus{}, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_order", Err: fmt.Errorf("order %s not found", orderID)}
	}
	filledAmount, _ := strconv.ParseFloat(o.VolExec, 64)
	filledPrice, _ := strconv.ParseFloat(o.Price, 64)
	return venue.OrderStatus{
		OrderID:      orderID,
		Filled:       o.Status == "closed",
		FilledAmount: filledAmount,
		FilledPrice:  filledPrice,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.privatePost(ctx, "/0/private/CancelOrder", url.Values{"txid": {orderID}})
	return err
}

func (c *Client) Withdraw(ctx context.Context, req venue.WithdrawalRequest) (string, error) {
	data := url.Values{
		"asset":  {string(req.Currency)},
		"key":    {req.Network},
		"amount": {strconv.FormatFloat(req.Amount, 'f', -1, 64)},
	}
	raw, err := c.privatePost(ctx, "/0/private/Withdraw", data)
	if err != nil {
		return "", err
	}
	var result struct {
		RefID string `json:"refid"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "withdraw", Err: err}
	}
	return result.RefID, nil
}

func (c *Client) DepositAddress(ctx context.Context, currency domain.Currency, network string) (string, error) {
	data := url.Values{"asset": {string(currency)}, "method": {network}}
	raw, err := c.privatePost(ctx, "/0/private/DepositAddresses", data)
	if err != nil {
		return "", err
	}
	var addrs []struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "deposit_address", Err: err}
	}
	if len(addrs) == 0 {
		return "", &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "deposit_address", Err: fmt.Errorf("no deposit address for %s/%s", currency, network)}
	}
	return addrs[0].Address, nil
}

func (c *Client) WithdrawalFee(ctx context.Context, currency domain.Currency, network string) (float64, bool, error) {
	// Kraken does not expose a dedicated fee-quote endpoint; the funds
	// router falls back to its static network fee table for this venue.
	return 0, false, nil
}

func (c *Client) FetchWithdrawalStatus(ctx context.Context, withdrawalID string) (domain.TransferStatus, error) {
	raw, err := c.privatePost(ctx, "/0/private/WithdrawStatus", url.Values{})
	if err != nil {
		return domain.TransferUnknown, err
	}
	var entries []struct {
		RefID  string `json:"refid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return domain.TransferUnknown, &venue.AdapterError{Venue: c.Name(), Kind: venue.ErrUnknown, Op: "fetch_withdrawal_status", Err: err}
	}
	for _, e := range entries {
		if e.RefID != withdrawalID {
			continue
		}
		switch e.Status {
		case "Success":
			return domain.TransferConfirmed, nil
		case "Pending":
			return domain.TransferSent, nil
		case "Failure":
			return domain.TransferFailed, nil
		}
	}
	return domain.TransferUnknown, nil
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.publicGet(ctx, "/0/public/Time", nil)
	return err
}

var _ venue.Adapter = (*Client)(nil)
