package httpapi

import (
	"context"
	"strconv"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/cache"
	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// CacheVenueHealth implements VenueHealth by reading the venue status
// hashes the fanout writes to the shared cache.
type CacheVenueHealth struct {
	cache  *cache.Cache
	venues []domain.Venue
}

// NewCacheVenueHealth builds a VenueHealth view over the configured
// venues.
func NewCacheVenueHealth(c *cache.Cache, venues []domain.Venue) *CacheVenueHealth {
	return &CacheVenueHealth{cache: c, venues: venues}
}

// Status reads one venue's last reported health from the cache.
func (h *CacheVenueHealth) Status(venue domain.Venue) (domain.VenueStatus, bool) {
	vals, err := h.cache.GetVenueStatus(context.Background(), string(venue))
	if err != nil || len(vals) == 0 {
		return domain.VenueStatus{}, false
	}
	status := domain.VenueStatus{
		Venue:   venue,
		State:   domain.VenueState(vals["status"]),
		Message: vals["message"],
	}
	if ts, err := strconv.ParseFloat(vals["timestamp"], 64); err == nil {
		status.LastUpdate = time.Unix(int64(ts), 0)
	}
	return status, true
}

// All reads every configured venue's last reported health.
func (h *CacheVenueHealth) All() []domain.VenueStatus {
	out := make([]domain.VenueStatus, 0, len(h.venues))
	for _, v := range h.venues {
		if status, ok := h.Status(v); ok {
			out = append(out, status)
		} else {
			out = append(out, domain.VenueStatus{Venue: v, State: domain.VenueStateUnknown})
		}
	}
	return out
}
