package analysis

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/noise"
)

// Noise computes the traffic-noise field around the site and samples it at
// nearby building facades. The field needs a real building footprint to
// propagate against, and a study area without any road is insufficient
// data, not a zero-noise result.
func (s *Service) Noise(ctx context.Context, dataType, value string) (*NoiseResult, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}
	return s.noise(ctx, st)
}

func (s *Service) noise(ctx context.Context, st *site) (*NoiseResult, error) {
	footprint, ok := s.noiseFootprint(st)
	if !ok {
		return nil, eris.Wrapf(ErrInsufficientData,
			"noise: no building footprint within %.0f m", siteBuildingSearchM)
	}

	roads := s.fetcher.Fetch(ctx, st.resolved.Coordinate, s.cfg.NoiseStudyM, features.FilterHighways)

	params := noise.Params{
		FlowVehHr:        s.cfg.TrafficFlow,
		HeavyFrac:        s.cfg.HeavyPercent,
		SpeedKMH:         s.cfg.TrafficSpeedKMH,
		GroundAbsorption: s.cfg.GroundAbsorption,
		StudyRadiusM:     s.cfg.NoiseStudyM,
		GridResM:         s.cfg.NoiseGridResM,
	}

	var lines []geom.T
	for _, f := range roads.Linear() {
		lines = append(lines, f.Geometry)
	}

	field, err := noise.ComputeField(footprint, lines, params)
	if err != nil {
		if eris.Is(err, noise.ErrNoRoads) {
			return nil, eris.Wrapf(ErrInsufficientData, "noise: %s", err.Error())
		}
		return nil, eris.Wrap(err, "noise: compute field")
	}

	studyBox := geometry.Bounds(footprint).Expand(s.cfg.NoiseStudyM)
	var facadeGeoms []geom.T
	for _, b := range s.buildings.Intersecting(studyBox) {
		facadeGeoms = append(facadeGeoms, b.Geometry)
	}

	minDB, maxDB := field.MinMax()
	return &NoiseResult{
		Site:          st.summary(),
		SourceLevelDB: noise.EmissionLevel(params.FlowVehHr, params.HeavyFrac, params.SpeedKMH),
		MinDB:         minDB,
		MaxDB:         maxDB,
		Field:         field,
		Facades:       noise.SampleFacades(field, facadeGeoms),
	}, nil
}

// noiseFootprint picks the facade polygon the field is computed against.
// Propagation is meaningless on a lot boundary or a synthetic buffer, so
// anything other than a building footprint triggers a fresh lookup near the
// resolved point.
func (s *Service) noiseFootprint(st *site) (geom.T, bool) {
	if st.source == "building" {
		return st.shape, true
	}
	return s.largestBuildingNear(geometry.WGS84ToMercator(st.resolved.Coordinate))
}
