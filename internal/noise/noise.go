// Package noise computes an analytic traffic-noise field around a site: one
// empirical source emission level, applied to every nearby road segment and
// accumulated over a regular grid. This is an approximation model: no
// diffraction, reflection geometry, or occlusion by buildings.
package noise

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/geometry"
)

// ErrNoRoads signals that no road geometry fell within the study radius.
var ErrNoRoads = eris.New("noise: no roads within study radius")

// Params holds the traffic and discretization constants.
type Params struct {
	FlowVehHr        float64 // total traffic flow, vehicles/hour
	HeavyFrac        float64 // fraction of heavy vehicles, 0..1
	SpeedKMH         float64 // assumed travel speed
	GroundAbsorption float64 // ground absorption coefficient
	StudyRadiusM     float64 // buffer beyond the site polygon
	GridResM         float64 // grid spacing
}

// reflectionCorrectionDB is the fixed facade reflection correction.
const reflectionCorrectionDB = -2.0

// EmissionLevel computes the source emission level in dB(A) from traffic
// parameters: separate empirical light- and heavy-vehicle levels combined
// as linear energy.
func EmissionLevel(flowVehHr, heavyFrac, speedKMH float64) float64 {
	light := 27.7 + 10*math.Log10(flowVehHr*(1-heavyFrac)) + 0.02*speedKMH
	heavy := 23.1 + 10*math.Log10(flowVehHr*heavyFrac) + 0.08*speedKMH
	energy := math.Pow(10, light/10) + math.Pow(10, heavy/10)
	return 10 * math.Log10(energy)
}

// Field is a regular noise grid. Levels are row-major, indexed [row*Cols+col],
// in dB(A).
type Field struct {
	OriginX float64   `json:"origin_x"`
	OriginY float64   `json:"origin_y"`
	ResM    float64   `json:"res_m"`
	Cols    int       `json:"cols"`
	Rows    int       `json:"rows"`
	Levels  []float64 `json:"levels"`
}

// CellCenter returns the projected coordinate of cell (row, col).
func (f *Field) CellCenter(row, col int) geometry.XY {
	return geometry.XY{
		X: f.OriginX + float64(col)*f.ResM,
		Y: f.OriginY + float64(row)*f.ResM,
	}
}

// At returns the level at (row, col).
func (f *Field) At(row, col int) float64 {
	return f.Levels[row*f.Cols+col]
}

// MinMax returns the field's level range.
func (f *Field) MinMax() (minDB, maxDB float64) {
	minDB, maxDB = f.Levels[0], f.Levels[0]
	for _, v := range f.Levels[1:] {
		minDB = math.Min(minDB, v)
		maxDB = math.Max(maxDB, v)
	}
	return minDB, maxDB
}

// segment is one simple road segment.
type segment struct {
	a geometry.XY
	b geometry.XY
}

// decompose splits road geometries into simple segments. MultiLineStrings
// decompose per part; non-line geometries contribute nothing.
func decompose(roads []geom.T) []segment {
	var segs []segment
	appendLine := func(flat []float64, stride int) {
		for i := stride; i < len(flat); i += stride {
			segs = append(segs, segment{
				a: geometry.XY{X: flat[i-stride], Y: flat[i-stride+1]},
				b: geometry.XY{X: flat[i], Y: flat[i+1]},
			})
		}
	}
	for _, g := range roads {
		switch t := g.(type) {
		case *geom.LineString:
			appendLine(t.FlatCoords(), t.Stride())
		case *geom.MultiLineString:
			for i := 0; i < t.NumLineStrings(); i++ {
				ls := t.LineString(i)
				appendLine(ls.FlatCoords(), ls.Stride())
			}
		}
	}
	return segs
}

// ComputeField accumulates every road segment's propagation contribution
// over a regular grid covering the site polygon buffered by the study
// radius. The computation is a pure function of its inputs: two runs over
// the same inputs produce identical grids.
//
// Distance from a cell to a segment is the true point-to-segment minimum,
// not the segment-centroid approximation, so levels stay correct near line
// endpoints.
func ComputeField(sitePolygon geom.T, roads []geom.T, p Params) (*Field, error) {
	segs := decompose(roads)
	if len(segs) == 0 {
		return nil, eris.Wrap(ErrNoRoads, "compute field")
	}

	source := EmissionLevel(p.FlowVehHr, p.HeavyFrac, p.SpeedKMH)

	bounds := geometry.Bounds(sitePolygon).Expand(p.StudyRadiusM)
	cols := int(math.Ceil((bounds.MaxX - bounds.MinX) / p.GridResM))
	rows := int(math.Ceil((bounds.MaxY - bounds.MinY) / p.GridResM))
	if cols < 1 || rows < 1 {
		return nil, eris.Wrap(ErrNoRoads, "degenerate study area")
	}

	field := &Field{
		OriginX: bounds.MinX,
		OriginY: bounds.MinY,
		ResM:    p.GridResM,
		Cols:    cols,
		Rows:    rows,
		Levels:  make([]float64, cols*rows),
	}

	energy := make([]float64, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := field.CellCenter(row, col)
			var sum float64
			for _, s := range segs {
				d := geometry.DistToSegment(cell, s.a, s.b)
				aDiv := 20 * math.Log10(d+1)
				aGround := p.GroundAbsorption * 5 * math.Log10(d+1)
				level := source - aDiv - aGround + reflectionCorrectionDB
				sum += math.Pow(10, level/10)
			}
			energy[row*cols+col] = sum
		}
	}

	for i, e := range energy {
		field.Levels[i] = 10 * math.Log10(e+1e-9)
	}
	return field, nil
}

// FacadeSample is the averaged field level at one building centroid.
type FacadeSample struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	LevelDB float64 `json:"level_db"`
}

// SampleFacades averages the field cells within one grid resolution of each
// building centroid. Buildings outside the grid are skipped.
func SampleFacades(field *Field, buildings []geom.T) []FacadeSample {
	var out []FacadeSample
	for _, b := range buildings {
		c := geometry.Centroid(b)
		var sum float64
		var count int
		for row := 0; row < field.Rows; row++ {
			for col := 0; col < field.Cols; col++ {
				if geometry.Dist(c, field.CellCenter(row, col)) <= field.ResM {
					sum += field.At(row, col)
					count++
				}
			}
		}
		if count == 0 {
			continue
		}
		out = append(out, FacadeSample{X: c.X, Y: c.Y, LevelDB: sum / float64(count)})
	}
	return out
}
