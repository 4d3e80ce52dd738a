package routing

import (
	"container/heap"

	"github.com/rotisserie/eris"
)

// Route is an ordered node path with derived totals.
type Route struct {
	NodeIDs    []int64
	LengthM    float64
	TravelSecs float64
}

// DistanceKM returns the route length in kilometers.
func (r *Route) DistanceKM() float64 {
	return r.LengthM / 1000
}

// pqItem is a priority queue entry for Dijkstra.
type pqItem struct {
	node int64
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }

// Less orders by distance, then node id, so the expansion order and the
// chosen path among equal-cost alternatives are deterministic.
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) { *pq = append(*pq, x.(pqItem)) }

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Route computes the minimum-travel-time path between two nodes. Unreachable
// targets return ErrNoRouteFound, which callers absorb per station.
func (g *Graph) Route(from, to int64) (*Route, error) {
	if _, ok := g.nodes[from]; !ok {
		return nil, eris.Wrapf(ErrNoRouteFound, "unknown origin node %d", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, eris.Wrapf(ErrNoRouteFound, "unknown target node %d", to)
	}

	dist := map[int64]float64{from: 0}
	prev := make(map[int64]int64)
	prevLen := make(map[int64]float64)
	done := make(map[int64]bool)

	pq := &priorityQueue{{node: from, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == to {
			break
		}
		for _, e := range g.adj[cur.node] {
			next := cur.dist + e.TravelSecs
			if d, seen := dist[e.To]; !seen || next < d {
				dist[e.To] = next
				prev[e.To] = cur.node
				prevLen[e.To] = e.LengthM
				heap.Push(pq, pqItem{node: e.To, dist: next})
			}
		}
	}

	if !done[to] {
		return nil, eris.Wrapf(ErrNoRouteFound, "%d -> %d", from, to)
	}

	// Reconstruct the path and its totals.
	var path []int64
	for at := to; ; {
		path = append(path, at)
		if at == from {
			break
		}
		at = prev[at]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	route := &Route{NodeIDs: path, TravelSecs: dist[to]}
	for i := 1; i < len(path); i++ {
		route.LengthM += prevLen[path[i]]
	}
	return route, nil
}
