package routing

import (
	"sort"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/geometry"
)

// NearestStations returns the k nearest station features by straight-line
// distance to the site point. Stations outside the fetch radius were never
// in the layer, so they are never considered even when they would be closer
// by path.
func NearestStations(layer features.Layer, sitePt geometry.XY, k int) []features.Feature {
	if layer.Empty() || k <= 0 {
		return nil
	}

	type ranked struct {
		feature features.Feature
		dist    float64
	}
	out := make([]ranked, 0, layer.Len())
	for _, f := range layer.Features {
		out = append(out, ranked{feature: f, dist: geometry.Dist(sitePt, f.Centroid())})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })

	if len(out) > k {
		out = out[:k]
	}
	result := make([]features.Feature, len(out))
	for i, r := range out {
		result[i] = r.feature
	}
	return result
}
