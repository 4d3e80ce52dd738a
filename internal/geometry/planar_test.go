package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"
)

func square(minX, minY, side float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY,
		minX + side, minY,
		minX + side, minY + side,
		minX, minY + side,
		minX, minY,
	}, []int{10})
}

func TestDistToSegment(t *testing.T) {
	a := XY{X: 0, Y: 0}
	b := XY{X: 10, Y: 0}

	// Perpendicular foot inside the segment.
	assert.InDelta(t, 3, DistToSegment(XY{X: 5, Y: 3}, a, b), 1e-12)

	// Beyond an endpoint: distance to the endpoint, not the infinite line.
	assert.InDelta(t, 5, DistToSegment(XY{X: 14, Y: 3}, a, b), 1e-12)

	// Degenerate zero-length segment.
	assert.InDelta(t, 5, DistToSegment(XY{X: 3, Y: 4}, a, a), 1e-12)
}

func TestPointInPolygon_Holes(t *testing.T) {
	// 10x10 square with a 4x4 hole in the middle.
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		3, 3, 7, 3, 7, 7, 3, 7, 3, 3,
	}, []int{10, 20})

	assert.True(t, PointInPolygon(XY{X: 1, Y: 1}, poly))
	assert.False(t, PointInPolygon(XY{X: 5, Y: 5}, poly), "point in hole")
	assert.False(t, PointInPolygon(XY{X: 11, Y: 5}, poly))
	assert.False(t, PointInPolygon(XY{}, nil))
}

func TestArea_And_Centroid(t *testing.T) {
	sq := square(0, 0, 10)
	assert.InDelta(t, 100, Area(sq), 1e-9)

	c := Centroid(sq)
	assert.InDelta(t, 5, c.X, 1e-9)
	assert.InDelta(t, 5, c.Y, 1e-9)

	// Hole subtracts from area.
	withHole := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		3, 3, 7, 3, 7, 7, 3, 7, 3, 3,
	}, []int{10, 20})
	assert.InDelta(t, 84, Area(withHole), 1e-9)

	// Lines have no area.
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0})
	assert.Zero(t, Area(line))
	lc := Centroid(line)
	assert.InDelta(t, 5, lc.X, 1e-9)
	assert.InDelta(t, 0, lc.Y, 1e-9)
}

func TestBufferCircle(t *testing.T) {
	circle := BufferCircle(XY{X: 100, Y: 200}, 25)

	// A 64-gon of radius r has area slightly under pi*r^2.
	area := Area(circle)
	assert.InDelta(t, math.Pi*25*25, area, math.Pi*25*25*0.01)

	assert.True(t, PointInPolygon(XY{X: 100, Y: 200}, circle))
	assert.True(t, PointInPolygon(XY{X: 120, Y: 200}, circle))
	assert.False(t, PointInPolygon(XY{X: 130, Y: 200}, circle))
}

func TestSectorPolygon(t *testing.T) {
	// First quadrant sector: 0..90 degrees counterclockwise from east.
	sector := SectorPolygon(XY{}, 100, 0, 90)

	assert.True(t, PointInPolygon(XY{X: 50, Y: 50}, sector))
	assert.False(t, PointInPolygon(XY{X: -50, Y: 50}, sector))
	assert.False(t, PointInPolygon(XY{X: 50, Y: -50}, sector))

	// Quarter of the circle area.
	assert.InDelta(t, math.Pi*100*100/4, Area(sector), math.Pi*100*100/4*0.01)
}

func TestBBox(t *testing.T) {
	b := BBoxAround(XY{X: 10, Y: 20}, 5)
	assert.Equal(t, BBox{MinX: 5, MinY: 15, MaxX: 15, MaxY: 25}, b)

	assert.True(t, b.Intersects(BBox{MinX: 14, MinY: 24, MaxX: 30, MaxY: 30}))
	assert.False(t, b.Intersects(BBox{MinX: 16, MinY: 15, MaxX: 20, MaxY: 25}))

	e := b.Expand(1)
	assert.Equal(t, BBox{MinX: 4, MinY: 14, MaxX: 16, MaxY: 26}, e)

	bounds := Bounds(square(2, 3, 4))
	assert.Equal(t, BBox{MinX: 2, MinY: 3, MaxX: 6, MaxY: 7}, bounds)
}

func TestIntersectionAreaFraction(t *testing.T) {
	probe := square(0, 0, 10)

	// No geometries: zero coverage.
	assert.Zero(t, IntersectionAreaFraction(probe, nil))

	// Full coverage by a larger square.
	full := IntersectionAreaFraction(probe, []geom.T{square(-5, -5, 20)})
	assert.InDelta(t, 1.0, full, 1e-9)

	// A 5x5 corner square covers about a quarter by area.
	quarter := IntersectionAreaFraction(probe, []geom.T{square(0, 0, 5)})
	assert.InDelta(t, 0.25, quarter, 0.05)

	// Deterministic: repeated evaluation yields the identical estimate.
	again := IntersectionAreaFraction(probe, []geom.T{square(0, 0, 5)})
	assert.Equal(t, quarter, again)
}
