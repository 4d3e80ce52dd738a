// Package routing builds mode-specific street graphs around a site and
// computes minimum-travel-time paths on them.
package routing

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/geometry"
)

// Mode is a travel mode.
type Mode string

// Supported travel modes.
const (
	ModeWalk  Mode = "walk"
	ModeDrive Mode = "drive"
)

// ErrNoRouteFound signals that no path connects two nodes. It is per-route:
// callers skip the affected station and keep going.
var ErrNoRouteFound = eris.New("routing: no route found")

// ErrEmptyGraph signals that no usable ways survived graph construction.
var ErrEmptyGraph = eris.New("routing: empty street graph")

// Node is a street intersection (or way endpoint) in the projected frame.
type Node struct {
	ID  int64
	Pos geometry.XY
}

// Edge is a directed street segment with precomputed weights.
type Edge struct {
	To         int64
	LengthM    float64
	TravelSecs float64
}

// Graph is a directed street graph for one travel mode. Edge travel times
// are assigned once at build and never recomputed per query.
type Graph struct {
	Mode  Mode
	nodes map[int64]Node
	adj   map[int64][]Edge
}

// walkExcluded lists highway values unusable on foot.
var walkExcluded = map[string]bool{
	"motorway":      true,
	"motorway_link": true,
	"trunk":         true,
	"trunk_link":    true,
}

// driveExcluded lists highway values unusable by car.
var driveExcluded = map[string]bool{
	"footway":    true,
	"path":       true,
	"pedestrian": true,
	"steps":      true,
	"cycleway":   true,
	"corridor":   true,
	"track":      true,
}

// usable reports whether a way serves the mode.
func usable(tags map[string]string, mode Mode) bool {
	hw, ok := tags["highway"]
	if !ok || hw == "" {
		return false
	}
	switch mode {
	case ModeWalk:
		return !walkExcluded[hw]
	case ModeDrive:
		return !driveExcluded[hw]
	}
	return false
}

// oneway interprets the oneway tag for drive mode: 0 bidirectional,
// 1 forward only, -1 reversed.
func oneway(tags map[string]string) int {
	switch tags["oneway"] {
	case "yes", "true", "1":
		return 1
	case "-1", "reverse":
		return -1
	default:
		return 0
	}
}

// Build constructs a street graph from raw ways for the given mode and
// speed, then merges degree-2 pass-through nodes. Returns ErrEmptyGraph when
// nothing usable remains.
func Build(ways []features.Way, mode Mode, speedKMH float64) (*Graph, error) {
	g := &Graph{
		Mode:  mode,
		nodes: make(map[int64]Node),
		adj:   make(map[int64][]Edge),
	}
	metersPerSec := speedKMH * 1000 / 3600

	for _, w := range ways {
		if !usable(w.Tags, mode) || len(w.NodeIDs) < 2 {
			continue
		}

		dir := 0
		if mode == ModeDrive {
			dir = oneway(w.Tags)
		}

		for i := 1; i < len(w.NodeIDs); i++ {
			from, to := w.NodeIDs[i-1], w.NodeIDs[i]
			a, b := w.Coords[i-1], w.Coords[i]
			length := geometry.Dist(a, b)
			if length == 0 {
				continue
			}
			g.nodes[from] = Node{ID: from, Pos: a}
			g.nodes[to] = Node{ID: to, Pos: b}

			secs := length / metersPerSec
			switch dir {
			case 1:
				g.addEdge(from, to, length, secs)
			case -1:
				g.addEdge(to, from, length, secs)
			default:
				g.addEdge(from, to, length, secs)
				g.addEdge(to, from, length, secs)
			}
		}
	}

	if len(g.nodes) == 0 {
		return nil, eris.Wrapf(ErrEmptyGraph, "mode %s", mode)
	}

	g.simplify()

	zap.L().Debug("routing: graph built",
		zap.String("mode", string(mode)),
		zap.Int("nodes", len(g.nodes)),
		zap.Int("edges", g.edgeCount()),
	)
	return g, nil
}

func (g *Graph) addEdge(from, to int64, length, secs float64) {
	g.adj[from] = append(g.adj[from], Edge{To: to, LengthM: length, TravelSecs: secs})
}

func (g *Graph) edgeCount() int {
	var n int
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Node returns the node with the given id.
func (g *Graph) Node(id int64) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NearestNode snaps a projected coordinate to the closest graph node by
// planar distance.
func (g *Graph) NearestNode(pt geometry.XY) (Node, bool) {
	var best Node
	bestDist := -1.0
	for _, n := range g.nodes {
		d := geometry.Dist(pt, n.Pos)
		if bestDist < 0 || d < bestDist || (d == bestDist && n.ID < best.ID) {
			best = n
			bestDist = d
		}
	}
	return best, bestDist >= 0
}

// simplify merges pass-through nodes: a node whose neighborhood is exactly
// one incoming and one outgoing chain is removed, its two edges fused with
// summed length. Connectivity and path lengths are preserved.
func (g *Graph) simplify() {
	incoming := make(map[int64][]int64)
	for from, edges := range g.adj {
		for _, e := range edges {
			incoming[e.To] = append(incoming[e.To], from)
		}
	}

	for id := range g.nodes {
		out := g.adj[id]
		in := incoming[id]

		switch {
		// Bidirectional pass-through: u <-> v <-> w collapses to u <-> w.
		case len(out) == 2 && len(in) == 2 &&
			sameNeighbors(out, in) && out[0].To != out[1].To && out[0].To != id:
			u, w := out[0].To, out[1].To
			if g.findEdge(u, id) < 0 || g.findEdge(w, id) < 0 {
				continue
			}
			lenU := g.removeEdge(u, id)
			lenW := g.removeEdge(w, id)
			secsPerMeter := out[0].TravelSecs / out[0].LengthM
			total := lenU + lenW
			g.addEdge(u, w, total, total*secsPerMeter)
			g.addEdge(w, u, total, total*secsPerMeter)
			incoming[w] = replaceNeighbor(incoming[w], id, u)
			incoming[u] = replaceNeighbor(incoming[u], id, w)
			delete(g.adj, id)
			delete(g.nodes, id)

		// One-way pass-through: u -> v -> w collapses to u -> w.
		case len(out) == 1 && len(in) == 1 &&
			in[0] != out[0].To && in[0] != id && out[0].To != id:
			u, w := in[0], out[0].To
			lenU := g.removeEdge(u, id)
			if lenU < 0 {
				continue
			}
			secsPerMeter := out[0].TravelSecs / out[0].LengthM
			total := lenU + out[0].LengthM
			g.addEdge(u, w, total, total*secsPerMeter)
			incoming[w] = replaceNeighbor(incoming[w], id, u)
			delete(g.adj, id)
			delete(g.nodes, id)
		}
	}
}

// sameNeighbors reports whether the outgoing targets equal the incoming
// sources as an unordered pair.
func sameNeighbors(out []Edge, in []int64) bool {
	return (out[0].To == in[0] && out[1].To == in[1]) ||
		(out[0].To == in[1] && out[1].To == in[0])
}

// findEdge returns the length of the edge from->to, or -1 when absent.
func (g *Graph) findEdge(from, to int64) float64 {
	for _, e := range g.adj[from] {
		if e.To == to {
			return e.LengthM
		}
	}
	return -1
}

// removeEdge deletes the edge from->to and returns its length, or -1 when no
// such edge exists.
func (g *Graph) removeEdge(from, to int64) float64 {
	edges := g.adj[from]
	for i, e := range edges {
		if e.To == to {
			g.adj[from] = append(edges[:i], edges[i+1:]...)
			return e.LengthM
		}
	}
	return -1
}

// replaceNeighbor swaps old for repl in a neighbor list.
func replaceNeighbor(list []int64, old, repl int64) []int64 {
	for i, v := range list {
		if v == old {
			list[i] = repl
		}
	}
	return list
}
