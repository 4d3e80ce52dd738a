package analysis

import (
	"context"
	"sort"

	"github.com/parcelworks/siteatlas/internal/features"
)

// Transport assembles the public-transport context around the site: rail and
// light-rail alignments, stations, bus stops, and the major road frame. Every
// layer may come back empty; the artifact reports what was found.
func (s *Service) Transport(ctx context.Context, dataType, value string) (*TransportResult, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}
	return s.transport(ctx, st)
}

func (s *Service) transport(ctx context.Context, st *site) (*TransportResult, error) {
	coord := st.resolved.Coordinate
	radius := s.cfg.StationRadiusM

	layers := []struct {
		name  string
		layer features.Layer
	}{
		{"rail", s.fetcher.Fetch(ctx, coord, radius, features.FilterRail)},
		{"light_rail", s.fetcher.Fetch(ctx, coord, radius, features.FilterLightRail)},
		{"stations", s.fetcher.Fetch(ctx, coord, radius, features.FilterStations)},
		{"bus_stops", s.fetcher.Fetch(ctx, coord, radius, features.FilterBusStops)},
		{"major_roads", s.fetcher.Fetch(ctx, coord, radius, features.FilterMajorRoads)},
	}

	result := &TransportResult{Site: st.summary()}
	for _, l := range layers {
		result.Layers = append(result.Layers, LayerSummary{
			Name:      l.name,
			Features:  l.layer.Len(),
			Truncated: l.layer.Truncated,
		})
	}

	result.RailLines = lineNames(layers[0].layer, layers[1].layer)
	for _, f := range layers[2].layer.Features {
		result.Stations = append(result.Stations, StationInfo{
			Name:     f.Name,
			Location: featurePoint(f),
		})
	}
	return result, nil
}

// lineNames collects the distinct display names of linear rail features,
// sorted for stable output.
func lineNames(layers ...features.Layer) []string {
	seen := make(map[string]bool)
	for _, l := range layers {
		for _, f := range l.Linear() {
			if f.Name != nil && !seen[*f.Name] {
				seen[*f.Name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
