package domain

import "time"

// PricePoint is one observed mid price at a point in time, used by the
// volatility gate's rolling window.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
}

// PriceHistory is a time-bounded rolling window of mid prices for a single
// venue/pair. Points older than the window are dropped on each insert.
type PriceHistory struct {
	Window time.Duration
	points []PricePoint
}

// NewPriceHistory builds a PriceHistory retaining points within window.
func NewPriceHistory(window time.Duration) *PriceHistory {
	return &PriceHistory{Window: window}
}

// Add inserts a new price observation and evicts anything older than the
// configured window relative to now.
func (h *PriceHistory) Add(price float64, now time.Time) {
	h.points = append(h.points, PricePoint{Price: price, Timestamp: now})
	h.evict(now)
}

func (h *PriceHistory) evict(now time.Time) {
	cutoff := now.Add(-h.Window)
	i := 0
	for ; i < len(h.points); i++ {
		if h.points[i].Timestamp.After(cutoff) {
			break
		}
	}
	h.points = h.points[i:]
}

// Len returns the number of points currently retained.
func (h *PriceHistory) Len() int {
	return len(h.points)
}

// MinMax returns the minimum and maximum price currently retained. ok is
// false when the window is empty.
func (h *PriceHistory) MinMax() (min, max float64, ok bool) {
	if len(h.points) == 0 {
		return 0, 0, false
	}
	min, max = h.points[0].Price, h.points[0].Price
	for _, p := range h.points[1:] {
		if p.Price < min {
			min = p.Price
		}
		if p.Price > max {
			max = p.Price
		}
	}
	return min, max, true
}

// Volatility returns (max-min)/min across the current window. ok is false
// when fewer than two points are retained or min is non-positive.
func (h *PriceHistory) Volatility() (vol float64, ok bool) {
	min, max, have := h.MinMax()
	if !have || len(h.points) < 2 || min <= 0 {
		return 0, false
	}
	return (max - min) / min, true
}
