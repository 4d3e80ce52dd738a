package analysis

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/geometry"
)

const (
	// busStopRadiusM is the bus-stop search radius; tighter than the general
	// context radius because only immediate stops matter here.
	busStopRadiusM = 700.0

	// maxBusStops caps the bus stops carried in the artifact.
	maxBusStops = 8

	// maxLabels caps the named amenity labels in the artifact.
	maxLabels = 20
)

// Context assembles the land-use context around the site: the statutory
// zoning, the surrounding land-use mix, nearby stations, bus stops, and named
// amenity labels. Zoning is required; the fetched layers are best effort.
func (s *Service) Context(ctx context.Context, dataType, value string) (*ContextResult, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}
	return s.context(ctx, st)
}

func (s *Service) context(ctx context.Context, st *site) (*ContextResult, error) {
	zoning, err := s.zoning.Lookup(st.center)
	if err != nil {
		return nil, eris.Wrapf(err, "context: zoning for %s", st.value)
	}

	coord := st.resolved.Coordinate
	radius := s.cfg.ViewContextM

	landuse := s.fetcher.Fetch(ctx, coord, radius, features.FilterLanduse)
	leisure := s.fetcher.Fetch(ctx, coord, radius, features.FilterLeisure)
	amenities := s.fetcher.Fetch(ctx, coord, radius, features.FilterAmenities)
	stations := s.fetcher.Fetch(ctx, coord, s.cfg.StationRadiusM, features.FilterStations)
	busStops := s.fetcher.Fetch(ctx, coord, busStopRadiusM, features.FilterBusStops)

	result := &ContextResult{
		Site:    st.summary(),
		Zoning:  zoning,
		Landuse: landuseBreakdown(landuse, leisure),
	}

	for _, f := range stations.Features {
		result.Stations = append(result.Stations, StationInfo{
			Name:     f.Name,
			Location: featurePoint(f),
		})
	}

	stops := nearestFeatures(busStops, st.center, maxBusStops)
	for _, f := range stops {
		result.BusStops = append(result.BusStops, featurePoint(f))
	}

	for _, f := range amenities.Features {
		if f.Name == nil {
			continue
		}
		result.Labels = append(result.Labels, Label{Text: *f.Name, Location: featurePoint(f)})
		if len(result.Labels) == maxLabels {
			break
		}
	}
	return result, nil
}

// landuseBreakdown aggregates areal features by their category value. The
// leisure layer contributes under its own tag so parks and pitches are not
// lost in the generic land-use mix.
func landuseBreakdown(landuse, leisure features.Layer) []LanduseBreakdown {
	totals := make(map[string]*LanduseBreakdown)
	accumulate := func(layer features.Layer, key string) {
		for _, f := range layer.Areal() {
			cat, ok := f.Tags[key]
			if !ok || cat == "" {
				continue
			}
			b, ok := totals[cat]
			if !ok {
				b = &LanduseBreakdown{Category: cat}
				totals[cat] = b
			}
			b.Features++
			b.AreaM2 += geometry.Area(f.Geometry)
		}
	}
	accumulate(landuse, "landuse")
	accumulate(leisure, "leisure")

	out := make([]LanduseBreakdown, 0, len(totals))
	for _, b := range totals {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AreaM2 != out[j].AreaM2 {
			return out[i].AreaM2 > out[j].AreaM2
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// nearestFeatures ranks layer features by distance from pt and keeps k.
func nearestFeatures(layer features.Layer, pt geometry.XY, k int) []features.Feature {
	type ranked struct {
		f features.Feature
		d float64
	}
	out := make([]ranked, 0, layer.Len())
	for _, f := range layer.Features {
		out = append(out, ranked{f: f, d: geometry.Dist(pt, f.Centroid())})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].d < out[j].d })
	if len(out) > k {
		out = out[:k]
	}
	res := make([]features.Feature, len(out))
	for i, r := range out {
		res[i] = r.f
	}
	return res
}
