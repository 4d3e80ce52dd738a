package analysis

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/routing"
)

// Driving computes driving routes between the site and its nearest rail
// stations, both directions separately because one-way streets make them
// asymmetric. Zoning context is required: a site outside every zoning plan
// fails the analysis.
func (s *Service) Driving(ctx context.Context, dataType, value string) (*DrivingResult, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}
	return s.driving(ctx, st)
}

func (s *Service) driving(ctx context.Context, st *site) (*DrivingResult, error) {
	zoning, err := s.zoning.Lookup(st.center)
	if err != nil {
		return nil, eris.Wrapf(err, "driving: zoning for %s", st.value)
	}

	graph, stations, err := s.accessInputs(ctx, st, routing.ModeDrive, s.cfg.DriveSpeedKMH)
	if err != nil {
		return nil, err
	}

	siteNode, ok := graph.NearestNode(st.center)
	if !ok {
		return nil, eris.Wrap(ErrInsufficientData, "driving: graph has no nodes")
	}

	result := &DrivingResult{
		Site:       st.summary(),
		Zoning:     zoning,
		GraphNodes: graph.NodeCount(),
	}
	for _, station := range stations {
		stationNode, ok := graph.NearestNode(station.Centroid())
		if !ok {
			continue
		}

		entry := DriveStationRoutes{
			StationName: station.Name,
			Station:     featurePoint(station),
		}
		if route, err := graph.Route(stationNode.ID, siteNode.ID); err == nil {
			rs := routeSummary(graph, route)
			entry.Ingress = &rs
		} else {
			s.log.Debug("driving: no ingress route",
				zap.Int64("station_node", stationNode.ID), zap.Error(err))
		}
		if route, err := graph.Route(siteNode.ID, stationNode.ID); err == nil {
			rs := routeSummary(graph, route)
			entry.Egress = &rs
		} else {
			s.log.Debug("driving: no egress route",
				zap.Int64("station_node", stationNode.ID), zap.Error(err))
		}

		// A station unreachable in both directions still appears in the
		// artifact: absence of routes is a finding, not missing output.
		result.Routes = append(result.Routes, entry)
	}
	return result, nil
}
