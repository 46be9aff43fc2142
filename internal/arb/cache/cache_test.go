package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "market:kraken:BTC/USD:ticker", marketKey("kraken", "BTC/USD", "ticker"))
	assert.Equal(t, "market:kraken:BTC/USD:book", marketKey("kraken", "BTC/USD", "book"))
	assert.Equal(t, "exchange:status:kraken", statusKey("kraken"))
	assert.Equal(t, "arbitrage:opportunity:abc123", opportunityKey("abc123"))
	assert.Equal(t, "metrics:detector:cycles_found", metricKey("detector", "cycles_found"))
	assert.Equal(t, "lock:transfer:kraken:BTC", lockKey("transfer:kraken:BTC"))
}
