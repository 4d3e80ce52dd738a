package analysis

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/routing"
)

// Walking computes walking routes from the site to its nearest rail stations.
func (s *Service) Walking(ctx context.Context, dataType, value string) (*WalkingResult, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}
	return s.walking(ctx, st)
}

func (s *Service) walking(ctx context.Context, st *site) (*WalkingResult, error) {
	graph, stations, err := s.accessInputs(ctx, st, routing.ModeWalk, s.cfg.WalkSpeedKMH)
	if err != nil {
		return nil, err
	}

	origin, ok := graph.NearestNode(st.center)
	if !ok {
		return nil, eris.Wrap(ErrInsufficientData, "walking: graph has no nodes")
	}

	result := &WalkingResult{Site: st.summary(), GraphNodes: graph.NodeCount()}
	for _, station := range stations {
		dest, ok := graph.NearestNode(station.Centroid())
		if !ok {
			continue
		}
		route, err := graph.Route(origin.ID, dest.ID)
		if err != nil {
			// Disconnected station: report the ones we can reach.
			s.log.Debug("walking: station unreachable",
				zap.Int64("node", dest.ID), zap.Error(err))
			continue
		}
		result.Stations = append(result.Stations, StationRoute{
			StationName: station.Name,
			Station:     featurePoint(station),
			Route:       routeSummary(graph, route),
		})
	}
	return result, nil
}

// accessInputs fetches the street graph and the nearest stations shared by
// the walking and driving pipelines.
func (s *Service) accessInputs(ctx context.Context, st *site, mode routing.Mode, speedKMH float64) (*routing.Graph, []features.Feature, error) {
	ways, err := s.fetcher.Ways(ctx, st.resolved.Coordinate, s.cfg.GraphRadiusM, features.FilterHighways)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "analysis: street network for %s", st.value)
	}

	graph, err := routing.Build(ways, mode, speedKMH)
	if err != nil {
		return nil, nil, eris.Wrapf(ErrInsufficientData, "%s graph: %s", mode, err.Error())
	}

	layer := s.fetcher.Fetch(ctx, st.resolved.Coordinate, s.cfg.StationRadiusM, features.FilterStations)
	stations := routing.NearestStations(layer, st.center, s.cfg.StationCount)
	if len(stations) == 0 {
		return nil, nil, eris.Wrapf(ErrInsufficientData, "no stations within %.0f m", s.cfg.StationRadiusM)
	}
	return graph, stations, nil
}

// routeSummary renders a computed route, resolving node ids back to
// projected coordinates. Distances round to 0.01 km and travel times floor
// at one minute, so even a route of a few meters reports a usable figure.
func routeSummary(g *routing.Graph, r *routing.Route) RouteSummary {
	path := make([]Point, 0, len(r.NodeIDs))
	for _, id := range r.NodeIDs {
		if n, ok := g.Node(id); ok {
			path = append(path, Point{X: n.Pos.X, Y: n.Pos.Y})
		}
	}
	minutes := int(math.Round(r.TravelSecs / 60))
	if minutes < 1 {
		minutes = 1
	}
	return RouteSummary{
		DistanceKM: math.Round(r.DistanceKM()*100) / 100,
		TimeMin:    minutes,
		Path:       path,
	}
}

func featurePoint(f features.Feature) Point {
	c := f.Centroid()
	return Point{X: c.X, Y: c.Y}
}
