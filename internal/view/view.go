// Package view partitions the compass circle around a site into angular
// sectors, scores each sector's land cover and built form, and classifies a
// dominant view type per sector with arc merging.
package view

import (
	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/refdata"
)

// Class is a dominant view classification.
type Class string

// View classes.
const (
	ClassGreen Class = "GREEN"
	ClassWater Class = "WATER"
	ClassCity  Class = "CITY"
	ClassOpen  Class = "OPEN"
)

// Arc is a contiguous run of sectors sharing one classification. Angles are
// degrees counterclockwise from east.
type Arc struct {
	StartDeg float64 `json:"start_deg"`
	EndDeg   float64 `json:"end_deg"`
	Class    Class   `json:"class"`
}

// Inputs are the context layers feeding the classifier. Geometries are in
// the projected frame; any slice may be empty.
type Inputs struct {
	Green     []geom.T
	Water     []geom.T
	Buildings []geom.T
	Heights   []refdata.Building
}

// Params configures the sector decomposition.
type Params struct {
	SectorWidthDeg float64
	RadiusM        float64
}

// sectorMetrics holds one sector's raw measurements.
type sectorMetrics struct {
	startDeg  float64
	endDeg    float64
	green     float64
	water     float64
	building  float64
	avgHeight float64
}

// Classify decomposes the circle around center into equal sectors, scores
// them, and returns the merged classification arcs. The sector ring is
// circular: when the first and last arc share a class they merge across the
// 0 degree seam, so the output never splits one visual arc in two.
func Classify(center geometry.XY, in Inputs, p Params) []Arc {
	if p.SectorWidthDeg <= 0 {
		p.SectorWidthDeg = 20
	}
	if p.RadiusM <= 0 {
		p.RadiusM = 360
	}
	n := int(360 / p.SectorWidthDeg)

	metrics := make([]sectorMetrics, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * p.SectorWidthDeg
		end := start + p.SectorWidthDeg
		sector := geometry.SectorPolygon(center, p.RadiusM, start, end)

		m := sectorMetrics{
			startDeg: start,
			endDeg:   end,
			green:    geometry.IntersectionAreaFraction(sector, in.Green),
			water:    geometry.IntersectionAreaFraction(sector, in.Water),
			building: geometry.IntersectionAreaFraction(sector, in.Buildings),
		}

		var heightSum float64
		var heightCount int
		sectorBounds := geometry.Bounds(sector)
		for _, b := range in.Heights {
			if !b.Bounds.Intersects(sectorBounds) {
				continue
			}
			if intersectsSector(b.Geometry, sector) {
				heightSum += b.HeightM
				heightCount++
			}
		}
		if heightCount > 0 {
			m.avgHeight = heightSum / float64(heightCount)
		}
		metrics = append(metrics, m)
	}

	classes := classify(metrics)
	return mergeArcs(metrics, classes)
}

// intersectsSector approximates polygon/sector intersection: any vertex of g
// inside the sector, or the geometry containing the sector's centroid.
func intersectsSector(g geom.T, sector *geom.Polygon) bool {
	flat := g.FlatCoords()
	stride := g.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		if geometry.PointInPolygon(geometry.XY{X: flat[i], Y: flat[i+1]}, sector) {
			return true
		}
	}
	return geometry.PointInGeom(geometry.Centroid(sector), g)
}

// normalize min-max scales vals into [0,1]; a constant metric normalizes to
// zero everywhere rather than dividing by zero.
func normalize(vals []float64) []float64 {
	minV, maxV := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(vals))
	if maxV == minV {
		return out
	}
	for i, v := range vals {
		out[i] = (v - minV) / (maxV - minV)
	}
	return out
}

// classify scores each sector and picks the dominant class. Ties resolve in
// the fixed order green, water, city, open.
func classify(metrics []sectorMetrics) []Class {
	n := len(metrics)
	green := make([]float64, n)
	water := make([]float64, n)
	building := make([]float64, n)
	height := make([]float64, n)
	for i, m := range metrics {
		green[i] = m.green
		water[i] = m.water
		building[i] = m.building
		height[i] = m.avgHeight
	}
	greenN := normalize(green)
	waterN := normalize(water)
	densityN := normalize(building)
	heightN := normalize(height)

	classes := make([]Class, n)
	for i := 0; i < n; i++ {
		scores := []struct {
			class Class
			score float64
		}{
			{ClassGreen, greenN[i]},
			{ClassWater, waterN[i]},
			{ClassCity, heightN[i] * densityN[i]},
			{ClassOpen, (1 - densityN[i]) * (1 - heightN[i])},
		}
		best := scores[0]
		for _, s := range scores[1:] {
			if s.score > best.score {
				best = s
			}
		}
		classes[i] = best.class
	}
	return classes
}

// mergeArcs fuses consecutive sectors of equal class, then reconciles the
// circular wraparound seam.
func mergeArcs(metrics []sectorMetrics, classes []Class) []Arc {
	if len(metrics) == 0 {
		return nil
	}

	arcs := []Arc{{
		StartDeg: metrics[0].startDeg,
		EndDeg:   metrics[0].endDeg,
		Class:    classes[0],
	}}
	for i := 1; i < len(metrics); i++ {
		last := &arcs[len(arcs)-1]
		if classes[i] == last.Class {
			last.EndDeg = metrics[i].endDeg
		} else {
			arcs = append(arcs, Arc{
				StartDeg: metrics[i].startDeg,
				EndDeg:   metrics[i].endDeg,
				Class:    classes[i],
			})
		}
	}

	// The sectors form a circle, not a line: an arc running into 360 and an
	// arc starting at 0 with the same class are one arc.
	if len(arcs) > 1 && arcs[0].Class == arcs[len(arcs)-1].Class {
		arcs[0].StartDeg = arcs[len(arcs)-1].StartDeg
		arcs = arcs[:len(arcs)-1]
	}
	return arcs
}
