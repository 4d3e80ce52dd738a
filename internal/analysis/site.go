package analysis

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/identifier"
)

const (
	// siteBuildingSearchM bounds the fallback search for a building footprint
	// around the resolved point when no lot boundary exists.
	siteBuildingSearchM = 60.0

	// siteBufferRadiusM is the synthetic footprint radius when neither a lot
	// boundary nor a building footprint is available.
	siteBufferRadiusM = 25.0
)

// site is the resolved analysis subject: the coordinate, one footprint
// polygon, and where that footprint came from. Every pipeline works from
// exactly one site shape.
type site struct {
	dataType identifier.DataType
	value    string
	resolved identifier.ResolvedLocation
	shape    geom.T
	center   geometry.XY
	source   string
}

// resolveSite turns an identifier into a site. The footprint fallback chain
// is lot boundary, then largest nearby building footprint, then a circular
// buffer around the resolved point. The chain cannot fail once the
// identifier resolves.
func (s *Service) resolveSite(ctx context.Context, dataType, value string) (*site, error) {
	dt, err := identifier.ParseDataType(dataType)
	if err != nil {
		return nil, err
	}

	loc, err := s.resolver.Resolve(ctx, dt, value)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: resolve %s %s", dt, value)
	}
	pt := geometry.WGS84ToMercator(loc.Coordinate)

	boundary, err := s.locator.Locate(ctx, loc.Coordinate, dt)
	if err != nil {
		return nil, err
	}

	var shape geom.T
	source := "boundary"
	if boundary != nil {
		shape = boundary.Geometry
	} else if b, ok := s.largestBuildingNear(pt); ok {
		shape = b
		source = "building"
	} else {
		shape = geometry.BufferCircle(pt, siteBufferRadiusM)
		source = "buffer"
	}

	out := &site{
		dataType: dt,
		value:    value,
		resolved: loc,
		shape:    shape,
		center:   geometry.Centroid(shape),
		source:   source,
	}
	s.log.Debug("site resolved",
		zap.String("type", string(dt)),
		zap.String("value", value),
		zap.String("shape_source", source),
	)
	return out, nil
}

// largestBuildingNear returns the largest building footprint whose centroid
// lies within the search radius of pt.
func (s *Service) largestBuildingNear(pt geometry.XY) (geom.T, bool) {
	box := geometry.BBoxAround(pt, siteBuildingSearchM)

	var best geom.T
	var bestArea float64
	for _, b := range s.buildings.Intersecting(box) {
		if geometry.Dist(pt, geometry.Centroid(b.Geometry)) > siteBuildingSearchM {
			continue
		}
		if a := geometry.Area(b.Geometry); best == nil || a > bestArea {
			best = b.Geometry
			bestArea = a
		}
	}
	return best, best != nil
}

// summary renders the site for inclusion in artifacts.
func (st *site) summary() SiteSummary {
	return SiteSummary{
		DataType:    string(st.dataType),
		Value:       st.value,
		Lon:         st.resolved.Coordinate.Lon,
		Lat:         st.resolved.Coordinate.Lat,
		Score:       st.resolved.Score,
		ShapeSource: st.source,
		Center:      Point{X: st.center.X, Y: st.center.Y},
	}
}
