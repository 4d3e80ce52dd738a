package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Dist returns the planar distance between two points.
func Dist(a, b XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// DistToSegment returns the minimum distance from p to the segment a-b.
func DistToSegment(p, a, b XY) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Dist(p, XY{X: a.X + t*dx, Y: a.Y + t*dy})
}

// pointInRing reports whether p lies inside the ring given as flat XY
// coordinates, via the even-odd crossing rule.
func pointInRing(p XY, flat []float64, stride int) bool {
	inside := false
	n := len(flat) / stride
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		if (yi > p.Y) != (yj > p.Y) &&
			p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// PointInPolygon reports whether p lies inside the polygon, honoring holes.
func PointInPolygon(p XY, poly *geom.Polygon) bool {
	if poly == nil || poly.NumLinearRings() == 0 {
		return false
	}
	stride := poly.Stride()
	flat := poly.FlatCoords()
	ends := poly.Ends()
	start := 0
	if !pointInRing(p, flat[start:ends[0]], stride) {
		return false
	}
	for i := 1; i < len(ends); i++ {
		if pointInRing(p, flat[ends[i-1]:ends[i]], stride) {
			return false
		}
	}
	return true
}

// PointInGeom reports containment for Polygon and MultiPolygon geometries;
// other geometry types never contain a point.
func PointInGeom(p XY, g geom.T) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return PointInPolygon(p, t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if PointInPolygon(p, t.Polygon(i)) {
				return true
			}
		}
	}
	return false
}

// ringArea returns the signed shoelace area of a flat ring.
func ringArea(flat []float64, stride int) float64 {
	var sum float64
	n := len(flat) / stride
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[i*stride]*flat[j*stride+1] - flat[j*stride]*flat[i*stride+1]
	}
	return sum / 2
}

// Area returns the planar area of a Polygon or MultiPolygon (exterior rings
// minus holes). Non-areal geometries have zero area.
func Area(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		stride := t.Stride()
		flat := t.FlatCoords()
		ends := t.Ends()
		start := 0
		var area float64
		for i, end := range ends {
			a := math.Abs(ringArea(flat[start:end], stride))
			if i == 0 {
				area += a
			} else {
				area -= a
			}
			start = end
		}
		return area
	case *geom.MultiPolygon:
		var area float64
		for i := 0; i < t.NumPolygons(); i++ {
			area += Area(t.Polygon(i))
		}
		return area
	}
	return 0
}

// Centroid returns the centroid of any supported geometry. Areal geometries
// use the area-weighted ring centroid; lines use the length-weighted midpoint;
// points return themselves.
func Centroid(g geom.T) XY {
	switch t := g.(type) {
	case *geom.Point:
		return XY{X: t.X(), Y: t.Y()}
	case *geom.Polygon:
		return polygonCentroid(t)
	case *geom.MultiPolygon:
		var cx, cy, total float64
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			a := Area(p)
			c := polygonCentroid(p)
			cx += c.X * a
			cy += c.Y * a
			total += a
		}
		if total > 0 {
			return XY{X: cx / total, Y: cy / total}
		}
	case *geom.LineString:
		return lineCentroid(t.FlatCoords(), t.Stride())
	case *geom.MultiLineString:
		var cx, cy, total float64
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			l := LineLength(ls)
			c := lineCentroid(ls.FlatCoords(), ls.Stride())
			cx += c.X * l
			cy += c.Y * l
			total += l
		}
		if total > 0 {
			return XY{X: cx / total, Y: cy / total}
		}
	}
	// Degenerate input: fall back to the mean of all coordinates.
	return meanCoord(g.FlatCoords(), g.Stride())
}

func polygonCentroid(p *geom.Polygon) XY {
	stride := p.Stride()
	flat := p.FlatCoords()
	ends := p.Ends()
	ring := flat[:ends[0]]
	var cx, cy, area float64
	n := len(ring) / stride
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := ring[i*stride]*ring[j*stride+1] - ring[j*stride]*ring[i*stride+1]
		cx += (ring[i*stride] + ring[j*stride]) * cross
		cy += (ring[i*stride+1] + ring[j*stride+1]) * cross
		area += cross
	}
	if area == 0 {
		return meanCoord(ring, stride)
	}
	area /= 2
	return XY{X: cx / (6 * area), Y: cy / (6 * area)}
}

func lineCentroid(flat []float64, stride int) XY {
	var cx, cy, total float64
	for i := stride; i < len(flat); i += stride {
		ax, ay := flat[i-stride], flat[i-stride+1]
		bx, by := flat[i], flat[i+1]
		l := math.Hypot(bx-ax, by-ay)
		cx += (ax + bx) / 2 * l
		cy += (ay + by) / 2 * l
		total += l
	}
	if total == 0 {
		return meanCoord(flat, stride)
	}
	return XY{X: cx / total, Y: cy / total}
}

func meanCoord(flat []float64, stride int) XY {
	if len(flat) < stride {
		return XY{}
	}
	var sx, sy float64
	n := len(flat) / stride
	for i := 0; i < n; i++ {
		sx += flat[i*stride]
		sy += flat[i*stride+1]
	}
	return XY{X: sx / float64(n), Y: sy / float64(n)}
}

// LineLength returns the planar length of a LineString.
func LineLength(ls *geom.LineString) float64 {
	flat := ls.FlatCoords()
	stride := ls.Stride()
	var total float64
	for i := stride; i < len(flat); i += stride {
		total += math.Hypot(flat[i]-flat[i-stride], flat[i+1]-flat[i-stride+1])
	}
	return total
}

// BufferCircle returns a 64-gon approximating a circle of the given radius.
func BufferCircle(center XY, radius float64) *geom.Polygon {
	const segments = 64
	flat := make([]float64, 0, (segments+1)*2)
	for i := 0; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		flat = append(flat, center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// SectorPolygon returns a circular-sector polygon from startDeg to endDeg
// (counterclockwise from east) at the given radius around center.
func SectorPolygon(center XY, radius, startDeg, endDeg float64) *geom.Polygon {
	const steps = 40
	flat := make([]float64, 0, (steps+2)*2)
	flat = append(flat, center.X, center.Y)
	for i := 0; i <= steps; i++ {
		a := (startDeg + (endDeg-startDeg)*float64(i)/steps) * math.Pi / 180.0
		flat = append(flat, center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
	}
	flat = append(flat, center.X, center.Y)
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// BBox is an axis-aligned bounding box in the projected frame.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// BBoxAround returns a square box of the given half-width centered on p.
func BBoxAround(p XY, halfWidth float64) BBox {
	return BBox{
		MinX: p.X - halfWidth,
		MinY: p.Y - halfWidth,
		MaxX: p.X + halfWidth,
		MaxY: p.Y + halfWidth,
	}
}

// Bounds returns the bounding box of any geometry, or a zero box for empty
// geometries.
func Bounds(g geom.T) BBox {
	flat := g.FlatCoords()
	stride := g.Stride()
	if len(flat) < stride {
		return BBox{}
	}
	b := BBox{MinX: flat[0], MinY: flat[1], MaxX: flat[0], MaxY: flat[1]}
	for i := stride; i < len(flat); i += stride {
		b.MinX = math.Min(b.MinX, flat[i])
		b.MaxX = math.Max(b.MaxX, flat[i])
		b.MinY = math.Min(b.MinY, flat[i+1])
		b.MaxY = math.Max(b.MaxY, flat[i+1])
	}
	return b
}

// Intersects reports whether two boxes overlap.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Expand grows the box by m meters on every side.
func (b BBox) Expand(m float64) BBox {
	return BBox{MinX: b.MinX - m, MinY: b.MinY - m, MaxX: b.MaxX + m, MaxY: b.MaxY + m}
}

// IntersectionAreaFraction estimates the fraction of probe's area covered by
// the union of the given geometries, by regular point sampling. The estimate
// is deterministic for fixed inputs.
func IntersectionAreaFraction(probe *geom.Polygon, geoms []geom.T) float64 {
	if len(geoms) == 0 {
		return 0
	}
	const grid = 24
	b := Bounds(probe)
	if b.MaxX == b.MinX || b.MaxY == b.MinY {
		return 0
	}
	probeBoxes := make([]BBox, len(geoms))
	for i, g := range geoms {
		probeBoxes[i] = Bounds(g)
	}
	var inProbe, covered int
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			p := XY{
				X: b.MinX + (b.MaxX-b.MinX)*(float64(i)+0.5)/grid,
				Y: b.MinY + (b.MaxY-b.MinY)*(float64(j)+0.5)/grid,
			}
			if !PointInPolygon(p, probe) {
				continue
			}
			inProbe++
			for k, g := range geoms {
				if !probeBoxes[k].Intersects(BBox{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}) {
					continue
				}
				if PointInGeom(p, g) {
					covered++
					break
				}
			}
		}
	}
	if inProbe == 0 {
		return 0
	}
	return float64(covered) / float64(inProbe)
}
