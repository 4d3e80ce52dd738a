package analysis

import (
	"context"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/refdata"
	"github.com/parcelworks/siteatlas/internal/view"
)

// maxTopBuildings caps the labeled building heights in the view artifact.
const maxTopBuildings = 5

// View classifies the dominant view per compass sector around the site:
// green cover, open water, built-up skyline, or open outlook. Context layers
// come from the feature service; building heights from the reference layer.
func (s *Service) View(ctx context.Context, dataType, value string) (*ViewResult, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, st)
}

func (s *Service) view(ctx context.Context, st *site) (*ViewResult, error) {
	coord := st.resolved.Coordinate
	fetchR := s.cfg.ViewFetchM

	var green []geom.T
	for _, filter := range []features.TagFilter{
		features.FilterParks, features.FilterGrass, features.FilterWood,
	} {
		green = append(green, s.fetcher.Fetch(ctx, coord, fetchR, filter).Geometries()...)
	}

	var water []geom.T
	for _, filter := range []features.TagFilter{
		features.FilterWater, features.FilterWaterways,
	} {
		water = append(water, s.fetcher.Fetch(ctx, coord, fetchR, filter).Geometries()...)
	}

	heights := s.buildings.Intersecting(geometry.BBoxAround(st.center, fetchR))
	footprints := make([]geom.T, len(heights))
	for i, b := range heights {
		footprints[i] = b.Geometry
	}

	arcs := view.Classify(st.center, view.Inputs{
		Green:     green,
		Water:     water,
		Buildings: footprints,
		Heights:   heights,
	}, view.Params{
		SectorWidthDeg: s.cfg.SectorWidthDeg,
		RadiusM:        s.cfg.ViewRadiusM,
	})

	return &ViewResult{
		Site:         st.summary(),
		Arcs:         arcs,
		TopBuildings: topBuildings(heights, maxTopBuildings),
	}, nil
}

// topBuildings returns the k tallest reference buildings, tallest first.
func topBuildings(buildings []refdata.Building, k int) []BuildingHeight {
	sorted := make([]refdata.Building, len(buildings))
	copy(sorted, buildings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].HeightM > sorted[j].HeightM })
	if len(sorted) > k {
		sorted = sorted[:k]
	}

	out := make([]BuildingHeight, len(sorted))
	for i, b := range sorted {
		c := geometry.Centroid(b.Geometry)
		out[i] = BuildingHeight{Location: Point{X: c.X, Y: c.Y}, HeightM: b.HeightM}
	}
	return out
}
