package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/cache"
	"github.com/sawpanic/arbengine/internal/arb/domain"
)

type wireLevel [2]float64

func encodeBook(book domain.OrderBookSnapshot) (cache.OrderBook, error) {
	bids := make([]wireLevel, len(book.Bids))
	for i, l := range book.Bids {
		bids[i] = wireLevel{l.Price, l.Size}
	}
	asks := make([]wireLevel, len(book.Asks))
	for i, l := range book.Asks {
		asks[i] = wireLevel{l.Price, l.Size}
	}

	bidsJSON, err := json.Marshal(bids)
	if err != nil {
		return cache.OrderBook{}, fmt.Errorf("marshal bids: %w", err)
	}
	asksJSON, err := json.Marshal(asks)
	if err != nil {
		return cache.OrderBook{}, fmt.Errorf("marshal asks: %w", err)
	}

	ts := book.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return cache.OrderBook{
		Bids:      bidsJSON,
		Asks:      asksJSON,
		Timestamp: float64(ts.Unix()),
	}, nil
}
