// Package graph builds the cross-venue currency conversion graph from
// ticker snapshots and searches it for negative-weight cycles, each of
// which corresponds to a candidate arbitrage loop.
package graph

import (
	"math"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// RateGraph is a dense, integer-indexed directed graph of currency
// conversions. Vertices are currencies; edges carry the effective
// exchange rate (after fees) for converting one unit of From into To on
// a specific venue.
type RateGraph struct {
	index    map[domain.Currency]int
	vertices []domain.Currency
	edges    []domain.Edge
}

// NewBuilder starts an empty graph builder.
func NewBuilder() *RateGraph {
	return &RateGraph{index: make(map[domain.Currency]int)}
}

func (g *RateGraph) vertexIndex(c domain.Currency) int {
	if idx, ok := g.index[c]; ok {
		return idx
	}
	idx := len(g.vertices)
	g.index[c] = idx
	g.vertices = append(g.vertices, c)
	return idx
}

// AddTicker adds the two directed edges implied by a ticker snapshot: an
// ask-side conversion from quote to base, and a bid-side conversion from
// base to quote, each net of the venue's taker fee.
func (g *RateGraph) AddTicker(t domain.TickerSnapshot, takerFee float64) {
	if t.Ask <= 0 || t.Bid <= 0 {
		return
	}
	g.vertexIndex(t.Pair.Base)
	g.vertexIndex(t.Pair.Quote)

	feeMultiplier := 1 - takerFee

	// Selling quote currency to buy base at the ask price.
	buyRate := (1 / t.Ask) * feeMultiplier
	g.addEdge(domain.Edge{
		From:  t.Pair.Quote,
		To:    t.Pair.Base,
		Base:  t.Pair.Base,
		Quote: t.Pair.Quote,
		Venue: t.Venue,
		Rate:  buyRate,
	})

	// Selling base currency at the bid price to receive quote.
	sellRate := t.Bid * feeMultiplier
	g.addEdge(domain.Edge{
		From:  t.Pair.Base,
		To:    t.Pair.Quote,
		Base:  t.Pair.Base,
		Quote: t.Pair.Quote,
		Venue: t.Venue,
		Rate:  sellRate,
	})
}

func (g *RateGraph) addEdge(e domain.Edge) {
	if e.Rate <= 0 {
		return
	}
	e.Weight = -math.Log(e.Rate)
	g.edges = append(g.edges, e)
}

// NumVertices returns the number of distinct currencies in the graph.
func (g *RateGraph) NumVertices() int {
	return len(g.vertices)
}

// Edges returns every edge currently in the graph.
func (g *RateGraph) Edges() []domain.Edge {
	return g.edges
}

func (g *RateGraph) vertexAt(i int) domain.Currency {
	return g.vertices[i]
}
