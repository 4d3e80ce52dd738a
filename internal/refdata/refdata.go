// Package refdata loads the two static reference layers, zoning polygons
// and building footprints, from shapefiles at process startup. Both layers
// are immutable after load and safe for concurrent reads.
package refdata

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/geometry"
)

// ErrZoningNotFound signals that a point falls outside every known zoning
// polygon. It is fatal for any analysis requiring zoning context.
var ErrZoningNotFound = eris.New("refdata: no zoning polygon contains point")

// ZoningRecord is the planning context of a zoning polygon.
type ZoningRecord struct {
	ZoneLabel string `json:"zone_label"`
	PlanNo    string `json:"plan_no"`
}

type zoningFeature struct {
	geometry geom.T
	bounds   geometry.BBox
	record   ZoningRecord
}

// ZoningIndex answers point-in-polygon zoning lookups over the preloaded layer.
type ZoningIndex struct {
	features []zoningFeature
}

// Lookup returns the zoning record containing pt (projected frame). When
// overlapping plans both contain the point, the lowest feature index wins so
// lookups are deterministic. No containing polygon is an error, not a default.
func (z *ZoningIndex) Lookup(pt geometry.XY) (ZoningRecord, error) {
	probe := geometry.BBox{MinX: pt.X, MinY: pt.Y, MaxX: pt.X, MaxY: pt.Y}
	for _, f := range z.features {
		if !f.bounds.Intersects(probe) {
			continue
		}
		if geometry.PointInGeom(pt, f.geometry) {
			return f.record, nil
		}
	}
	return ZoningRecord{}, eris.Wrapf(ErrZoningNotFound, "(%.1f, %.1f)", pt.X, pt.Y)
}

// Len returns the number of zoning features.
func (z *ZoningIndex) Len() int {
	return len(z.features)
}

// NewZoningIndex builds an index from in-memory features; used by tests and
// by LoadZoning.
func NewZoningIndex(geoms []geom.T, records []ZoningRecord) *ZoningIndex {
	idx := &ZoningIndex{}
	for i, g := range geoms {
		idx.features = append(idx.features, zoningFeature{
			geometry: g,
			bounds:   geometry.Bounds(g),
			record:   records[i],
		})
	}
	return idx
}

// LoadZoning reads the zoning shapefile (WGS84), reprojects to the shared
// projected frame, and indexes it. The ZONE_LABEL and PLAN_NO attribute
// columns are required.
func LoadZoning(path string) (*ZoningIndex, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open zoning shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := fieldIndexMap(reader)
	zoneIdx, ok := fieldIdx["zone_label"]
	if !ok {
		return nil, eris.New("refdata: zoning shapefile missing ZONE_LABEL column")
	}
	planIdx, ok := fieldIdx["plan_no"]
	if !ok {
		return nil, eris.New("refdata: zoning shapefile missing PLAN_NO column")
	}

	var geoms []geom.T
	var records []ZoningRecord
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		g := shpPolygonToMercator(poly)
		if g == nil {
			skipped++
			continue
		}
		geoms = append(geoms, g)
		records = append(records, ZoningRecord{
			ZoneLabel: attribute(reader, zoneIdx),
			PlanNo:    attribute(reader, planIdx),
		})
	}

	zap.L().Info("refdata: zoning layer loaded",
		zap.String("path", path),
		zap.Int("features", len(geoms)),
		zap.Int("skipped", skipped),
	)
	return NewZoningIndex(geoms, records), nil
}

// Building is a reference footprint with its height attribute.
type Building struct {
	Geometry geom.T
	Bounds   geometry.BBox
	HeightM  float64
}

// BuildingLayer is the preloaded building-height reference layer.
type BuildingLayer struct {
	buildings []Building
}

// Intersecting returns the buildings whose bounds overlap box.
func (l *BuildingLayer) Intersecting(box geometry.BBox) []Building {
	var out []Building
	for _, b := range l.buildings {
		if b.Bounds.Intersects(box) {
			out = append(out, b)
		}
	}
	return out
}

// All returns every building in the layer.
func (l *BuildingLayer) All() []Building {
	return l.buildings
}

// Len returns the number of buildings.
func (l *BuildingLayer) Len() int {
	return len(l.buildings)
}

// NewBuildingLayer wraps in-memory buildings; used by tests and LoadBuildings.
func NewBuildingLayer(buildings []Building) *BuildingLayer {
	for i := range buildings {
		buildings[i].Bounds = geometry.Bounds(buildings[i].Geometry)
	}
	return &BuildingLayer{buildings: buildings}
}

// LoadBuildings reads the building shapefile, failing loudly if the HEIGHT_M
// column is absent, and drops rows at or below minHeightM.
func LoadBuildings(path string, minHeightM float64) (*BuildingLayer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open buildings shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := fieldIndexMap(reader)
	heightIdx, ok := fieldIdx["height_m"]
	if !ok {
		names := make([]string, 0, len(fieldIdx))
		for n := range fieldIdx {
			names = append(names, n)
		}
		return nil, eris.Errorf("refdata: HEIGHT_M column not found; available columns: %s",
			strings.Join(names, ", "))
	}

	var buildings []Building
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		h := parseFloat(attribute(reader, heightIdx))
		if h <= minHeightM {
			skipped++
			continue
		}
		g := shpPolygonToMercator(poly)
		if g == nil {
			skipped++
			continue
		}
		buildings = append(buildings, Building{
			Geometry: g,
			Bounds:   geometry.Bounds(g),
			HeightM:  h,
		})
	}

	zap.L().Info("refdata: building layer loaded",
		zap.String("path", path),
		zap.Int("buildings", len(buildings)),
		zap.Int("filtered", skipped),
	)
	return &BuildingLayer{buildings: buildings}, nil
}

// fieldIndexMap builds a lowercase field name -> index map for the reader.
func fieldIndexMap(reader *shp.Reader) map[string]int {
	fields := reader.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToLower(name)] = i
	}
	return idx
}

// attribute reads and trims the current row's attribute at the given index.
func attribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// shpPolygonToMercator converts a shapefile polygon (WGS84 lon/lat) to a
// Mercator MultiPolygon, one polygon per part.
func shpPolygonToMercator(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			m := geometry.WGS84ToMercator(geometry.LonLat{Lon: p.Points[j].X, Lat: p.Points[j].Y})
			flat = append(flat, m.X, m.Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("refdata: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("refdata: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
