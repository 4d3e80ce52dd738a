// Package features fetches tagged vector features from the Overpass API
// within a bounded radius of a point, and normalizes the heterogeneous
// upstream attribute schema into a fixed internal record shape before any
// consumer sees it.
package features

import (
	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/geometry"
)

// TagFilter selects features by tag key and, optionally, by tag values.
type TagFilter struct {
	Key    string
	Values []string // empty means any value
}

// Convenience filters matching the analysis pipelines' needs.
var (
	FilterBuildings  = TagFilter{Key: "building"}
	FilterHighways   = TagFilter{Key: "highway"}
	FilterMajorRoads = TagFilter{Key: "highway", Values: []string{"primary", "secondary"}}
	FilterRail       = TagFilter{Key: "railway", Values: []string{"rail", "subway"}}
	FilterLightRail  = TagFilter{Key: "railway", Values: []string{"light_rail"}}
	FilterStations   = TagFilter{Key: "railway", Values: []string{"station"}}
	FilterBusStops   = TagFilter{Key: "highway", Values: []string{"bus_stop"}}
	FilterWater      = TagFilter{Key: "natural", Values: []string{"water"}}
	FilterWaterways  = TagFilter{Key: "waterway"}
	FilterParks      = TagFilter{Key: "leisure", Values: []string{"park"}}
	FilterGrass      = TagFilter{Key: "landuse", Values: []string{"grass"}}
	FilterWood       = TagFilter{Key: "natural", Values: []string{"wood"}}
	FilterLanduse    = TagFilter{Key: "landuse"}
	FilterLeisure    = TagFilter{Key: "leisure"}
	FilterAmenities  = TagFilter{Key: "amenity"}
)

// Feature is one normalized external feature: a Mercator geometry, an
// optional display name (name:en preferred over name), and the raw tag map.
type Feature struct {
	Geometry geom.T
	Name     *string
	Tags     map[string]string
}

// Centroid returns the feature's centroid in the projected frame.
func (f Feature) Centroid() geometry.XY {
	return geometry.Centroid(f.Geometry)
}

// HasTag reports whether the feature carries key with one of the given
// values; with no values it tests key presence only.
func (f Feature) HasTag(key string, values ...string) bool {
	v, ok := f.Tags[key]
	if !ok {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Layer is a set of features fetched for one tag filter. An empty layer
// means "no data available", which every consumer must tolerate; it carries
// no claim that the area is actually featureless.
type Layer struct {
	Filter    TagFilter
	Features  []Feature
	Truncated bool
}

// Empty reports whether the layer holds no features.
func (l Layer) Empty() bool {
	return len(l.Features) == 0
}

// Len returns the feature count.
func (l Layer) Len() int {
	return len(l.Features)
}

// Select returns the subset of features carrying key with one of values.
func (l Layer) Select(key string, values ...string) []Feature {
	var out []Feature
	for _, f := range l.Features {
		if f.HasTag(key, values...) {
			out = append(out, f)
		}
	}
	return out
}

// Geometries returns every feature geometry in the layer.
func (l Layer) Geometries() []geom.T {
	out := make([]geom.T, len(l.Features))
	for i, f := range l.Features {
		out[i] = f.Geometry
	}
	return out
}

// Areal returns the features with polygonal geometry.
func (l Layer) Areal() []Feature {
	var out []Feature
	for _, f := range l.Features {
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
			out = append(out, f)
		}
	}
	return out
}

// Linear returns the features with line geometry.
func (l Layer) Linear() []Feature {
	var out []Feature
	for _, f := range l.Features {
		switch f.Geometry.(type) {
		case *geom.LineString, *geom.MultiLineString:
			out = append(out, f)
		}
	}
	return out
}

// Nearest returns the feature whose centroid is closest to pt, or false for
// an empty layer.
func (l Layer) Nearest(pt geometry.XY) (Feature, bool) {
	if l.Empty() {
		return Feature{}, false
	}
	best := 0
	bestDist := geometry.Dist(pt, l.Features[0].Centroid())
	for i := 1; i < len(l.Features); i++ {
		if d := geometry.Dist(pt, l.Features[i].Centroid()); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return l.Features[best], true
}

// Way is a raw street-network way with node identity preserved, consumed by
// the routing graph builder.
type Way struct {
	ID      int64
	NodeIDs []int64
	Coords  []geometry.XY
	Tags    map[string]string
}
