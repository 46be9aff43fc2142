package graph

import (
	"fmt"
	"math"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// FindNegativeCycles runs Bellman-Ford from every vertex in the graph and
// extracts every distinct negative-weight cycle reachable from a source,
// deduplicated modulo rotation. A negative cycle in log-space weight
// corresponds to a product-of-rates greater than one: an arbitrage loop.
func (g *RateGraph) FindNegativeCycles() []domain.Cycle {
	n := g.NumVertices()
	if n == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var cycles []domain.Cycle

	for source := 0; source < n; source++ {
		dist := make([]float64, n)
		pred := make([]int, n)
		predEdge := make([]*domain.Edge, n)
		for i := range dist {
			dist[i] = math.Inf(1)
			pred[i] = -1
		}
		dist[source] = 0

		// n-1 relaxation rounds bound the longest simple-path distance;
		// one further round that still relaxes an edge proves a
		// negative cycle exists on that edge's tail.
		var lastRelaxed int = -1
		for round := 0; round < n; round++ {
			lastRelaxed = -1
			for ei := range g.edges {
				e := &g.edges[ei]
				u := g.index[e.From]
				v := g.index[e.To]
				if dist[u] == math.Inf(1) {
					continue
				}
				if dist[u]+e.Weight < dist[v]-1e-12 {
					dist[v] = dist[u] + e.Weight
					pred[v] = u
					predEdge[v] = e
					lastRelaxed = v
				}
			}
		}
		if lastRelaxed == -1 {
			continue
		}

		// lastRelaxed lies on or downstream of a negative cycle. Walking
		// n predecessor steps from here guarantees landing back inside
		// the cycle regardless of how far downstream we started.
		x := lastRelaxed
		for i := 0; i < n; i++ {
			if pred[x] == -1 {
				break
			}
			x = pred[x]
		}
		if x == -1 {
			continue
		}

		cycle, key := extractCycle(x, pred, predEdge)
		if cycle == nil || seen[key] {
			continue
		}
		seen[key] = true
		cycles = append(cycles, *cycle)
	}

	return cycles
}

// extractCycle walks predecessor edges starting at start until it revisits
// a vertex, producing the closed walk in forward order along with a
// rotation-invariant dedup key.
func extractCycle(start int, pred []int, predEdge []*domain.Edge) (*domain.Cycle, string) {
	visited := make(map[int]int)
	order := []int{start}
	visited[start] = 0

	cur := start
	for {
		p := pred[cur]
		if p == -1 {
			return nil, ""
		}
		if idx, ok := visited[p]; ok {
			loop := order[idx:]
			edges := make([]domain.Edge, 0, len(loop))
			for i := 0; i < len(loop); i++ {
				from := loop[i]
				e := predEdge[from]
				if e == nil {
					return nil, ""
				}
				edges = append(edges, *e)
			}
			// predEdge[v] points to the edge arriving at v, so walking
			// loop in this order yields edges in reverse traversal;
			// reverse to present them from-to in cycle order.
			reverseEdges(edges)
			return &domain.Cycle{Edges: edges}, rotationKey(edges)
		}
		visited[p] = len(order)
		order = append(order, p)
		cur = p
	}
}

func reverseEdges(e []domain.Edge) {
	for i, j := 0, len(e)-1; i < j; i, j = i+1, j-1 {
		e[i], e[j] = e[j], e[i]
	}
}

// rotationKey produces a dedup key invariant to which vertex in the cycle
// the walk happened to start from, by rotating to the lexicographically
// smallest starting edge.
func rotationKey(edges []domain.Edge) string {
	best := -1
	for i, e := range edges {
		if best == -1 || string(e.From) < string(edges[best].From) {
			best = i
		}
	}
	s := ""
	for i := 0; i < len(edges); i++ {
		e := edges[(best+i)%len(edges)]
		s += fmt.Sprintf("%s->%s@%s|", e.From, e.To, e.Venue)
	}
	return s
}
